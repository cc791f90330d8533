package room

import "time"

// Outbound event names.
const (
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
	EventProblemChanged = "problem-changed"
	EventCodeUpdate     = "code-update"
	EventLanguageUpdate = "language-update"
	EventWhiteboardDraw = "whiteboard-draw"
	EventWhiteboardClr  = "whiteboard-clear"
	EventNewMessage     = "new-message"
	EventTimerStarted   = "timer-started"
	EventTimerPaused    = "timer-paused"
	EventTimerReset     = "timer-reset"
	EventViewModeUpdate = "view-mode-update"
	EventViewLockUpdate = "view-lock-update"
)

// Event is one outbound message. Payload is marshaled to JSON by the transport.
type Event struct {
	Name    string
	Payload any
}

// Broadcaster delivers events to connections. Implementations must not block.
type Broadcaster interface {
	ToOne(connID string, ev Event)
	ToAll(code string, ev Event)
	ToAllExcept(code, senderID string, ev Event)
}

type MembershipPayload struct {
	Count  int    `json:"count"`
	UserID string `json:"userId"`
}

type ProblemChangedPayload struct {
	Slug string `json:"slug"`
	Code string `json:"code"`
}

type CodeUpdatePayload struct {
	Code     string `json:"code"`
	SenderID string `json:"senderId"`
}

type LanguageUpdatePayload struct {
	Language Language `json:"language"`
	Code     string   `json:"code"`
}

type TimerStartedPayload struct {
	StartedAt time.Time `json:"startedAt"`
	Duration  int       `json:"duration"`
}

type TimerPausedPayload struct {
	Paused bool `json:"paused"`
}

type ViewModePayload struct {
	ViewMode ViewMode `json:"viewMode"`
}

type ViewLockPayload struct {
	Locked bool `json:"locked"`
}

type emptyPayload struct{}
