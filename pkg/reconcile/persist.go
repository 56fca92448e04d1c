package reconcile

import (
	"context"

	"github.com/aretw0/chatflow/pkg/domain"
)

// Targets lists the stores a transition must be written to.
type Targets struct {
	Local  bool
	Remote bool
}

// Any reports whether at least one store is targeted.
func (t Targets) Any() bool {
	return t.Local || t.Remote
}

// Plan applies the save policy.
// Local is written on every transition under SaveAlways, and only on reaching
// an end node under SaveOnEndOnly. Remote follows local, except that guests
// reach the remote only once the flow ends.
func Plan(strategy domain.SaveStrategy, destinationIsEnd, guest bool) Targets {
	var t Targets
	switch strategy {
	case domain.SaveOnEndOnly:
		t.Local = destinationIsEnd
	default:
		t.Local = true
	}
	t.Remote = t.Local && (!guest || destinationIsEnd)
	return t
}

// Report describes what a Persist call achieved.
type Report struct {
	LocalAttempted  bool
	LocalWritten    bool
	LocalErr        error
	RemoteAttempted bool
	RemoteWritten   bool
	RemoteErr       error
}

// Persist writes state to the targeted stores. Local is written synchronously
// first; remote is bounded by the engine timeout. Failures are logged and
// recorded in the report.
func (e *Engine) Persist(ctx context.Context, id domain.Identity, state *domain.ChatState, t Targets) Report {
	var r Report

	if t.Local {
		r.LocalAttempted = true
		r.LocalErr = e.writeLocal(id, state)
		r.LocalWritten = r.LocalErr == nil
		if r.LocalErr != nil {
			e.logger.Warn("local save failed", "key", id.StateKey(), "err", r.LocalErr)
		}
	}

	if t.Remote && e.remote != nil {
		r.RemoteAttempted = true
		key := e.remoteKey(id)
		r.RemoteErr = e.remote.SaveState(ctx, key, state)
		r.RemoteWritten = r.RemoteErr == nil
		if r.RemoteErr != nil {
			e.logger.Warn("remote save failed", "user_id", key, "err", r.RemoteErr)
		}
	}

	return r
}

func (e *Engine) writeLocal(id domain.Identity, state *domain.ChatState) error {
	raw, err := domain.EncodeState(state)
	if err != nil {
		return err
	}
	return e.local.Set(id.StateKey(), raw)
}
