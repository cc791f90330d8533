package room

import (
	"sync"
	"time"
)

// MaxParticipants is the session capacity.
const MaxParticipants = 2

// DefaultProblem is used when create-room carries no problem slug.
const DefaultProblem = "two-sum"

// DefaultTimerSeconds is the countdown length before any start-timer (45 minutes).
const DefaultTimerSeconds = 2700

// Language is the editor language of the shared buffer.
type Language string

const (
	LangJavaScript Language = "javascript"
	LangPython     Language = "python"
	LangJava       Language = "java"
	LangCPP        Language = "cpp"
)

// Valid reports whether l is one of the supported editor languages.
func (l Language) Valid() bool {
	switch l {
	case LangJavaScript, LangPython, LangJava, LangCPP:
		return true
	}
	return false
}

// ViewMode controls the room layout shown to both participants.
type ViewMode string

const (
	ViewHybrid     ViewMode = "hybrid"
	ViewWhiteboard ViewMode = "whiteboard"
)

// Valid reports whether v is a known view mode.
func (v ViewMode) Valid() bool {
	return v == ViewHybrid || v == ViewWhiteboard
}

// ChatMessage is one accepted chat line. ID and Timestamp are assigned by the engine.
type ChatMessage struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	DisplayName string    `json:"displayName"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

// Timer is the shared countdown. StartedAt is nil when the timer is not running.
type Timer struct {
	StartedAt *time.Time `json:"startedAt"`
	Duration  int        `json:"duration"`
	Paused    bool       `json:"paused"`
}

// Stroke is one whiteboard line segment.
type Stroke struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	PrevX     float64 `json:"prevX"`
	PrevY     float64 `json:"prevY"`
	Color     string  `json:"color" validate:"max=32"`
	LineWidth float64 `json:"lineWidth" validate:"gte=0,lte=200"`
}

// Session is the authoritative shared state of one room. All fields are owned by the
// Engine and only touched while mu is held.
type Session struct {
	Code            string
	creator         string
	participants    []string
	CodeContent     string
	CurrentLanguage Language
	CurrentProblem  string
	ChatLog         []ChatMessage
	Timer           Timer
	ViewMode        ViewMode
	ViewModeLocked  bool
	Strokes         []Stroke
	CreatedAt       time.Time

	mu     sync.Mutex
	closed bool
}

func newSession(code, problem, creator string, now time.Time) *Session {
	if problem == "" {
		problem = DefaultProblem
	}
	return &Session{
		Code:            code,
		creator:         creator,
		participants:    []string{creator},
		CurrentLanguage: LangJavaScript,
		CurrentProblem:  problem,
		ChatLog:         []ChatMessage{},
		Timer:           Timer{Duration: DefaultTimerSeconds},
		ViewMode:        ViewHybrid,
		CreatedAt:       now,
	}
}

// Creator returns the connection holding creator authority, or "" once it has left.
func (s *Session) Creator() string {
	return s.creator
}

// Participants returns a copy of the ordered participant list.
func (s *Session) Participants() []string {
	out := make([]string, len(s.participants))
	copy(out, s.participants)
	return out
}

func (s *Session) hasParticipant(connID string) bool {
	for _, p := range s.participants {
		if p == connID {
			return true
		}
	}
	return false
}

func (s *Session) addParticipant(connID string) {
	s.participants = append(s.participants, connID)
}

// removeParticipant drops connID and reports whether it was present. Creator authority
// is never reassigned: once the creator leaves, nobody holds it.
func (s *Session) removeParticipant(connID string) bool {
	for i, p := range s.participants {
		if p == connID {
			s.participants = append(s.participants[:i], s.participants[i+1:]...)
			if s.creator == connID {
				s.creator = ""
			}
			return true
		}
	}
	return false
}

// Snapshot is the state hand-off sent to a joining (or re-joining) participant.
type Snapshot struct {
	Code             string        `json:"code"`
	ChatLog          []ChatMessage `json:"chatLog"`
	CodeContent      string        `json:"codeContent"`
	CurrentLanguage  Language      `json:"currentLanguage"`
	CurrentProblem   string        `json:"currentProblem"`
	ViewMode         ViewMode      `json:"viewMode"`
	ViewModeLocked   bool          `json:"viewModeLocked"`
	IsCreator        bool          `json:"isCreator"`
	ParticipantCount int           `json:"participantCount"`
	Timer            Timer         `json:"timer"`
	Strokes          []Stroke      `json:"strokes,omitempty"`
}

func (s *Session) snapshot(forConn string, withStrokes bool) *Snapshot {
	chat := make([]ChatMessage, len(s.ChatLog))
	copy(chat, s.ChatLog)
	snap := &Snapshot{
		Code:             s.Code,
		ChatLog:          chat,
		CodeContent:      s.CodeContent,
		CurrentLanguage:  s.CurrentLanguage,
		CurrentProblem:   s.CurrentProblem,
		ViewMode:         s.ViewMode,
		ViewModeLocked:   s.ViewModeLocked,
		IsCreator:        isCreator(s, forConn),
		ParticipantCount: len(s.participants),
		Timer:            s.Timer,
	}
	if withStrokes {
		snap.Strokes = make([]Stroke, len(s.Strokes))
		copy(snap.Strokes, s.Strokes)
	}
	return snap
}

// Info is the public summary of a live room.
type Info struct {
	Code           string    `json:"code"`
	Participants   int       `json:"participants"`
	Capacity       int       `json:"capacity"`
	CurrentProblem string    `json:"currentProblem"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (s *Session) info() Info {
	return Info{
		Code:           s.Code,
		Participants:   len(s.participants),
		Capacity:       MaxParticipants,
		CurrentProblem: s.CurrentProblem,
		CreatedAt:      s.CreatedAt,
	}
}

// isCreator is the single authorization predicate for creator-gated requests.
func isCreator(s *Session, connID string) bool {
	return connID != "" && s.creator == connID && s.hasParticipant(connID)
}
