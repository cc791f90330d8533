package room

import "time"

// LifecycleKind names a membership transition of a session.
type LifecycleKind string

const (
	LifecycleCreated LifecycleKind = "created"
	LifecycleJoined  LifecycleKind = "joined"
	LifecycleLeft    LifecycleKind = "left"
	LifecycleClosed  LifecycleKind = "closed"
)

// LifecycleEvent is emitted by the Engine after a membership transition has been applied.
type LifecycleEvent struct {
	Kind         LifecycleKind `json:"kind"`
	Code         string        `json:"code"`
	ConnID       string        `json:"connId,omitempty"`
	Participants int           `json:"participants"`
	Problem      string        `json:"problem"`
	At           time.Time     `json:"at"`
	Transcript   *Transcript   `json:"transcript,omitempty"`
}

// Transcript is the final shared state of a closed session. It is attached to closed events only.
type Transcript struct {
	Code        string        `json:"code"`
	Problem     string        `json:"problem"`
	Language    Language      `json:"language"`
	CodeContent string        `json:"codeContent"`
	ChatLog     []ChatMessage `json:"chatLog"`
	CreatedAt   time.Time     `json:"createdAt"`
	ClosedAt    time.Time     `json:"closedAt"`
}

// Observer receives lifecycle events. Observe is called with the session lock held
// and must return without blocking.
type Observer interface {
	Observe(ev LifecycleEvent)
}

type nopObserver struct{}

func (nopObserver) Observe(LifecycleEvent) {}

func (s *Session) transcript(closedAt time.Time) *Transcript {
	chat := make([]ChatMessage, len(s.ChatLog))
	copy(chat, s.ChatLog)
	return &Transcript{
		Code:        s.Code,
		Problem:     s.CurrentProblem,
		Language:    s.CurrentLanguage,
		CodeContent: s.CodeContent,
		ChatLog:     chat,
		CreatedAt:   s.CreatedAt,
		ClosedAt:    closedAt,
	}
}
