package domain

import "strings"

// DefaultScenario is used when the caller does not name a scenario.
const DefaultScenario = "default"

// Identity is the (user, scenario, session) triple that owns a snapshot.
type Identity struct {
	UserID     string `json:"userId"`
	ScenarioID string `json:"scenarioId"`
	SessionID  string `json:"sessionId"`
}

// StateKey derives the local storage key for the conversational state.
// Different sessions of the same user never collide.
func (i Identity) StateKey() string {
	return i.ScenarioID + ":" + i.UserID + ":" + i.SessionID
}

// UserKey scopes the user to the scenario. Remote snapshots live under it by
// default, so flows sharing a remote store never read each other's progress.
func (i Identity) UserKey() string {
	return i.ScenarioID + ":" + i.UserID
}

// SessionRequest selects how the session id is resolved on mount.
// Any value other than SessionAuto and SessionNew pins that exact id.
type SessionRequest string

const (
	// SessionAuto resumes the last recorded session, or mints one.
	SessionAuto SessionRequest = "auto"
	// SessionNew always mints a fresh session id.
	SessionNew SessionRequest = "new"
)

// IsAuto reports whether the request defers to the last recorded session.
func (r SessionRequest) IsAuto() bool {
	return r == "" || r == SessionAuto
}

// IsNew reports whether a fresh session must be minted.
func (r SessionRequest) IsNew() bool {
	return r == SessionNew
}

// Pinned returns the explicit session id, if any.
func (r SessionRequest) Pinned() (string, bool) {
	if r.IsAuto() || r.IsNew() {
		return "", false
	}
	id := strings.TrimSpace(string(r))
	return id, id != ""
}
