/*
Package chatflow is a client-side engine for guided conversations.

A flow is a directed graph of question nodes. The engine tracks where a user is,
records their answers and a message log, and keeps that snapshot consistent
between a synchronous local store (the device) and an optional remote store.

# Concept

Every snapshot is stamped with a fingerprint of the graph it was produced
under. When a session opens it is hydrated: both stores are read, snapshots
from a different graph are discarded, and the newer of the remaining two wins.
On every answer the save strategy decides which stores are written; failures
are logged and never interrupt the conversation.

# Usage

	graph, err := yaml.Load("flow.yaml")
	if err != nil {
		log.Fatal(err)
	}

	engine, err := chatflow.New(graph,
		chatflow.WithLocalStore(file.New(".chatflow/store")),
		chatflow.WithRemoteStore(redis.New("localhost:6379", "", 0)),
	)
	if err != nil {
		log.Fatal(err)
	}

	s, err := engine.Open(ctx, "user-42")
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	node, _ := s.Node()
	fmt.Println(node.Question)
	_ = s.SubmitAnswer(ctx, "yes")

# Identity

Users without an id get a device-wide anonymous id. Guests (empty ids, guest_
and anon_ prefixes, bare UUIDs) never write to the remote store. Each scenario
remembers the last session per user so a plain Open resumes it.
*/
package chatflow
