/*
Package dsl provides a fluent builder for constructing chatflow graphs in Go.

It is an alternative to flow files when a graph is generated programmatically
or defined next to the code that owns its rules.

Example usage:

	b := dsl.New()

	b.Add("start").
		Question("Ready to start?").
		Buttons("yes", "no").
		Route(map[string]string{"yes": "name", "no": "bye"}, "")

	b.Add("name").
		Question("What is your name?").
		Input().
		Go("bye")

	b.Add("bye").
		Question("Thanks!").
		End()

	graph, err := b.Build()
*/
package dsl
