package chatflow

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
)

// Runner drives a session over line-based IO.
// This allows for easy testing and integration with different frontends (CLI, TUI, etc).
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer
}

// ContentRenderer is a function that transforms the content before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// NewRunner creates a Runner over the given IO.
func NewRunner(in io.Reader, out io.Writer) *Runner {
	return &Runner{Input: in, Output: out}
}

// Run asks questions until the session reaches an end node, the input ends or
// the user types exit. Typing /reset starts a new session.
func (r *Runner) Run(ctx context.Context, s *Session) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lines := bufio.NewReader(r.Input)
	w := r.Output

	if !r.Headless {
		fmt.Fprintln(w, "--- chatflow ---")
		if s.Outcome() == domain.LoadedReconciled {
			fmt.Fprintf(w, "(resuming from %s snapshot)\n", s.Source())
		}
	}

	lastShown := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		node, err := s.Node()
		if err != nil {
			return fmt.Errorf("render error: %w", err)
		}

		if node.ID != lastShown {
			r.show(node)
			lastShown = node.ID
		}
		if node.IsEnd {
			return nil
		}

		if !r.Headless {
			fmt.Fprint(w, "> ")
		}
		text, err := lines.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && text != "") {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}
		input := strings.TrimSpace(text)

		switch input {
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return nil
		case "/reset":
			if err := s.Reset(ctx, ""); err != nil {
				return fmt.Errorf("reset error: %w", err)
			}
			lastShown = ""
			continue
		}

		if node.Kind == domain.KindButton {
			choice, ok := pick(node.Options, input)
			if !ok {
				fmt.Fprintf(w, "Please pick one of: %s\n", strings.Join(node.Options, ", "))
				continue
			}
			err = s.SubmitAnswer(ctx, choice)
		} else {
			err = s.SubmitInput(ctx, input)
		}
		if err != nil {
			return fmt.Errorf("navigation error: %w", err)
		}
	}
}

func (r *Runner) show(node domain.Node) {
	output := node.Question
	if r.Renderer != nil {
		if rendered, err := r.Renderer(output); err == nil {
			output = rendered
		}
	}
	fmt.Fprintln(r.Output, strings.TrimSpace(output))

	if node.Kind == domain.KindButton && !node.IsEnd {
		for i, opt := range node.Options {
			fmt.Fprintf(r.Output, "  %d) %s\n", i+1, opt)
		}
	}
}

// pick accepts an option by 1-based index or case-insensitive label.
func pick(options []string, input string) (string, bool) {
	if i, err := strconv.Atoi(input); err == nil && i >= 1 && i <= len(options) {
		return options[i-1], true
	}
	for _, opt := range options {
		if strings.EqualFold(opt, input) {
			return opt, true
		}
	}
	return "", false
}
