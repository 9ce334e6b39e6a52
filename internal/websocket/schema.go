package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestEnvelope carries the client action. Both supported actions are
// parameterless, so the envelope is the whole message.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventTick   Event = "tick"
	EventState  Event = "state"
	EventGraded Event = "graded"
	EventPong   Event = "pong"
)

// TickResponse carries the authoritative countdown once a second.
type TickResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// StateResponse announces a session phase transition.
type StateResponse struct {
	Event Event  `json:"event"`
	State string `json:"state"`
}

// GradedResponse announces that the session has been graded and the result
// is available.
type GradedResponse struct {
	Event  Event `json:"event"`
	Forced bool  `json:"forced"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
