package reconcile

import (
	"context"
	"errors"

	"github.com/aretw0/chatflow/pkg/domain"
)

// Step names a state of the hydration machine.
type Step string

const (
	StepFetchRemote  Step = "fetch-remote"
	StepReadLocal    Step = "read-local"
	StepValidateHash Step = "validate-hash"
	StepSelect       Step = "select"
)

// Request describes what is being hydrated.
type Request struct {
	Identity    domain.Identity
	Guest       bool
	FlowHash    string
	InitialNode string
	// Fresh marks a conversation that was just started on purpose (a new or
	// reset session). Its remote record belongs to an earlier conversation and
	// is not consulted.
	Fresh bool
}

// Result is the terminal outcome of a hydration.
type Result struct {
	Outcome domain.HydrationOutcome
	Source  domain.SnapshotSource
	State   *domain.ChatState
	// Trace lists the visited steps followed by the terminal outcome.
	Trace []string
	// Divergence is what the losing snapshot lacked when both stores held a
	// valid one. Nil when they agreed or only one existed.
	Divergence *domain.StateDiff
}

type hydration struct {
	e      *Engine
	req    Request
	remote *domain.ChatState
	local  *domain.ChatState
	result Result
}

// stateFn is one step of the machine; it returns the next step, or nil once
// a terminal outcome has been recorded.
type stateFn func(ctx context.Context, h *hydration) stateFn

// Hydrate runs the load path. It never fails: unreachable or corrupt stores
// count as absent, and stale snapshots are cleared.
func (e *Engine) Hydrate(ctx context.Context, req Request) Result {
	h := &hydration{e: e, req: req}
	for state := stateFn(fetchRemote); state != nil; {
		state = state(ctx, h)
	}

	e.logger.Info("hydration complete",
		"key", req.Identity.StateKey(),
		"outcome", h.result.Outcome,
		"source", h.result.Source,
		"step", h.result.State.CurrentStep,
	)
	return h.result
}

func (h *hydration) visit(s Step) {
	h.result.Trace = append(h.result.Trace, string(s))
}

func (h *hydration) finish(outcome domain.HydrationOutcome, source domain.SnapshotSource, state *domain.ChatState) stateFn {
	h.result.Outcome = outcome
	h.result.Source = source
	h.result.State = state
	h.result.Trace = append(h.result.Trace, string(outcome))
	return nil
}

func (h *hydration) empty() *domain.ChatState {
	s := domain.NewChatState(h.req.InitialNode)
	s.FlowHash = h.req.FlowHash
	return s
}

func fetchRemote(ctx context.Context, h *hydration) stateFn {
	h.visit(StepFetchRemote)

	e := h.e
	if e.remote == nil || h.req.Guest || h.req.Fresh {
		return readLocal
	}

	key := e.remoteKey(h.req.Identity)
	state, err := e.remote.LoadState(ctx, key)
	switch {
	case errors.Is(err, domain.ErrSnapshotNotFound):
		e.logger.Debug("no remote snapshot", "user_id", key)
	case err != nil:
		e.logger.Warn("remote load failed, treating as absent", "user_id", key, "err", err)
	case state != nil:
		h.remote = state
	}
	return readLocal
}

func readLocal(_ context.Context, h *hydration) stateFn {
	h.visit(StepReadLocal)

	key := h.req.Identity.StateKey()
	raw, ok, err := h.e.local.Get(key)
	if err != nil {
		h.e.logger.Warn("local read failed, treating as absent", "key", key, "err", err)
		return validateHash
	}
	if !ok {
		return validateHash
	}

	state, err := domain.DecodeState(raw)
	if err != nil {
		h.e.logger.Warn("local snapshot unreadable, treating as absent", "key", key, "err", err)
		return validateHash
	}
	h.local = state
	return validateHash
}

func validateHash(_ context.Context, h *hydration) stateFn {
	h.visit(StepValidateHash)

	active := h.remote
	if active == nil {
		active = h.local
	}
	if active == nil {
		return h.finish(domain.LoadedFresh, domain.SourceNone, h.empty())
	}

	if h.remote != nil && h.local != nil && h.remote.FlowHash != h.local.FlowHash {
		h.e.logger.Info("local and remote snapshots disagree on flow hash",
			"local_hash", h.local.FlowHash, "remote_hash", h.remote.FlowHash)
		return h.clear()
	}

	if active.FlowHash != h.req.FlowHash {
		h.e.logger.Info("scenario changed, discarding snapshot",
			"stored_hash", active.FlowHash, "current_hash", h.req.FlowHash)
		return h.clear()
	}
	return selectSnapshot
}

func (h *hydration) clear() stateFn {
	key := h.req.Identity.StateKey()
	if err := h.e.local.Remove(key); err != nil {
		h.e.logger.Warn("failed to discard stale local snapshot", "key", key, "err", err)
	}
	return h.finish(domain.LoadedCleared, domain.SourceNone, h.empty())
}

func selectSnapshot(_ context.Context, h *hydration) stateFn {
	h.visit(StepSelect)

	switch {
	case h.remote != nil && h.local != nil:
		winner, loser, source := h.remote, h.local, domain.SourceRemote
		if h.local.UpdatedAt > h.remote.UpdatedAt {
			winner, loser, source = h.local, h.remote, domain.SourceLocal
		}
		if d := domain.Diff(loser, winner); d != nil {
			h.result.Divergence = d
			h.e.logger.Info("snapshots diverged",
				"key", h.req.Identity.StateKey(),
				"winner", source,
				"answers", len(d.Answers),
				"appended", len(d.Appended),
			)
		}
		return h.finish(domain.LoadedReconciled, source, winner)
	case h.remote != nil:
		return h.finish(domain.LoadedReconciled, domain.SourceRemote, h.remote)
	default:
		return h.finish(domain.LoadedReconciled, domain.SourceLocal, h.local)
	}
}
