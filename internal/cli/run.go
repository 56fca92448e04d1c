package cli

import (
	"context"
	"io"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/internal/presentation/tui"
	"github.com/aretw0/chatflow/pkg/domain"
)

// RunSession loads the flow, opens the user's session and chats over in/out
// until the flow ends or the input closes.
func RunSession(ctx context.Context, opts RunOptions, in io.Reader, out io.Writer) error {
	logger, err := CreateLogger(opts.Debug, opts.LogLevel)
	if err != nil {
		return err
	}

	graph, err := LoadFlow(opts.FlowPath)
	if err != nil {
		return err
	}

	bundle, err := createEngine(ctx, graph, opts, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := bundle.Close(); err != nil {
			logger.Warn("failed to close stores", "err", err)
		}
	}()

	if !opts.Headless {
		tui.PrintBanner(out)
	}

	s, err := bundle.Engine.Open(ctx, opts.UserID)
	if err != nil {
		return err
	}
	defer s.Close()

	id := s.Identity()
	logger.Info("session opened",
		"key", id.StateKey(),
		"outcome", s.Outcome(),
		"source", s.Source(),
	)
	if !opts.Headless {
		switch s.Outcome() {
		case domain.LoadedReconciled:
			printSystemMessage(out, "Resuming session '%s' at '%s'.", id.SessionID, s.Snapshot().CurrentStep)
		case domain.LoadedCleared:
			printSystemMessage(out, "The flow changed since your last visit; starting over.")
		default:
			printSystemMessage(out, "Session '%s' active.", id.SessionID)
		}
	}

	runner := chatflow.NewRunner(in, out)
	runner.Headless = opts.Headless
	if !opts.Headless {
		runner.Renderer = tui.NewRenderer()
	}

	runErr := runner.Run(ctx, s)
	if !opts.Headless && runErr == nil {
		printSystemMessage(out, "Finished at '%s'.", s.Snapshot().CurrentStep)
	}
	return handleExecutionError(runErr)
}
