package room

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultDisplayName = "Anonymous"
	defaultMaxStrokes  = 5000
)

// StarterSource resolves the starter snippet of a problem in a given language.
type StarterSource interface {
	Starter(problemSlug string, lang Language) (string, bool)
}

// EngineOptions wires the Engine to its collaborators.
type EngineOptions struct {
	Store       *Store
	Bindings    Bindings
	Broadcaster Broadcaster
	Starters    StarterSource
	Observer    Observer
	Logger      *zap.Logger
	Now         func() time.Time
	NewID       func() string

	// WhiteboardReplay keeps a stroke log per session and includes it in join snapshots.
	WhiteboardReplay bool
	MaxStrokes       int
}

// Engine applies requests to sessions and decides the fan-out of every accepted mutation.
// Requests against one session are serialized by the session lock, which is held through
// the broadcast so every participant observes events in acceptance order.
type Engine struct {
	store       *Store
	bindings    Bindings
	broadcaster Broadcaster
	starters    StarterSource
	observer    Observer
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
	replay      bool
	maxStrokes  int
}

// NewEngine creates a session engine.
func NewEngine(opts EngineOptions) *Engine {
	e := &Engine{
		store:       opts.Store,
		bindings:    opts.Bindings,
		broadcaster: opts.Broadcaster,
		starters:    opts.Starters,
		observer:    opts.Observer,
		logger:      opts.Logger,
		now:         opts.Now,
		newID:       opts.NewID,
		replay:      opts.WhiteboardReplay,
		maxStrokes:  opts.MaxStrokes,
	}
	if e.observer == nil {
		e.observer = nopObserver{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = newMessageID
	}
	if e.maxStrokes <= 0 {
		e.maxStrokes = defaultMaxStrokes
	}
	return e
}

// Store returns the session store the engine operates on.
func (e *Engine) Store() *Store { return e.store }

// Handle applies req on behalf of connID. It returns nil when the request is dropped:
// the connection is not in a session, or not a participant of the one it is bound to.
func (e *Engine) Handle(ctx context.Context, connID string, req Request) *Reply {
	switch r := req.(type) {
	case Ping:
		now := e.now()
		return &Reply{Success: true, Timestamp: &now}
	case CreateRoom:
		return e.create(ctx, connID, r)
	case JoinRoom:
		return e.join(connID, r)
	case LeaveRoom:
		if !e.Leave(connID) {
			return nil
		}
		return OK()
	case RoomInfo:
		sess, ok := e.lockParticipant(connID)
		if !ok {
			return Fail(ErrNotInRoom)
		}
		defer sess.mu.Unlock()
		info := sess.info()
		return &Reply{Success: true, Room: &info}
	}

	sess, ok := e.lockParticipant(connID)
	if !ok {
		e.logger.Debug("dropping request from connection outside a room", zap.String("conn_id", connID))
		return nil
	}
	defer sess.mu.Unlock()
	return e.apply(sess, connID, req)
}

func (e *Engine) apply(sess *Session, connID string, req Request) *Reply {
	switch r := req.(type) {
	case ChangeCode:
		sess.CodeContent = r.Code
		e.broadcaster.ToAllExcept(sess.Code, connID, Event{EventCodeUpdate, CodeUpdatePayload{Code: r.Code, SenderID: connID}})

	case ChangeLanguage:
		if !r.Language.Valid() {
			return Fail(invalid("unsupported language %q", r.Language))
		}
		sess.CurrentLanguage = r.Language
		sess.CodeContent = e.starter(sess.CurrentProblem, r.Language)
		e.broadcaster.ToAll(sess.Code, Event{EventLanguageUpdate, LanguageUpdatePayload{Language: r.Language, Code: sess.CodeContent}})

	case Draw:
		if e.replay {
			if len(sess.Strokes) >= e.maxStrokes {
				sess.Strokes = append(sess.Strokes[:0], sess.Strokes[1:]...)
			}
			sess.Strokes = append(sess.Strokes, r.Stroke)
		}
		e.broadcaster.ToAllExcept(sess.Code, connID, Event{EventWhiteboardDraw, r.Stroke})

	case ClearBoard:
		if e.replay {
			sess.Strokes = nil
		}
		e.broadcaster.ToAllExcept(sess.Code, connID, Event{EventWhiteboardClr, emptyPayload{}})

	case SendChat:
		text := strings.TrimSpace(r.Message)
		if text == "" {
			return Fail(invalid("message is blank"))
		}
		name := strings.TrimSpace(r.Username)
		if name == "" {
			name = defaultDisplayName
		}
		msg := ChatMessage{
			ID:          e.newID(),
			SenderID:    connID,
			DisplayName: name,
			Text:        text,
			Timestamp:   e.now(),
		}
		sess.ChatLog = append(sess.ChatLog, msg)
		e.broadcaster.ToAll(sess.Code, Event{EventNewMessage, msg})

	case ChangeProblem:
		if !isCreator(sess, connID) {
			return Fail(ErrUnauthorized)
		}
		slug := strings.TrimSpace(r.ProblemSlug)
		if slug == "" {
			return Fail(invalid("problem slug is required"))
		}
		code := r.StarterCode
		if code == "" {
			code = e.starter(slug, sess.CurrentLanguage)
		}
		sess.CurrentProblem = slug
		sess.CodeContent = code
		e.broadcaster.ToAll(sess.Code, Event{EventProblemChanged, ProblemChangedPayload{Slug: slug, Code: code}})

	case StartTimer:
		now := e.now()
		d := r.Duration
		if d <= 0 {
			d = sess.Timer.Duration
		}
		sess.Timer = Timer{StartedAt: &now, Duration: d, Paused: false}
		e.broadcaster.ToAll(sess.Code, Event{EventTimerStarted, TimerStartedPayload{StartedAt: now, Duration: d}})

	case PauseTimer:
		sess.Timer.Paused = !sess.Timer.Paused
		e.broadcaster.ToAll(sess.Code, Event{EventTimerPaused, TimerPausedPayload{Paused: sess.Timer.Paused}})

	case ResetTimer:
		sess.Timer.StartedAt = nil
		sess.Timer.Paused = false
		e.broadcaster.ToAll(sess.Code, Event{EventTimerReset, emptyPayload{}})

	case ChangeViewMode:
		if !r.ViewMode.Valid() {
			return Fail(invalid("unsupported view mode %q", r.ViewMode))
		}
		if sess.ViewModeLocked && !isCreator(sess, connID) {
			return Fail(ErrUnauthorized)
		}
		sess.ViewMode = r.ViewMode
		e.broadcaster.ToAll(sess.Code, Event{EventViewModeUpdate, ViewModePayload{ViewMode: r.ViewMode}})

	case ToggleViewLock:
		if !isCreator(sess, connID) {
			return Fail(ErrUnauthorized)
		}
		sess.ViewModeLocked = r.Locked
		e.broadcaster.ToAll(sess.Code, Event{EventViewLockUpdate, ViewLockPayload{Locked: r.Locked}})

	default:
		return Fail(invalid("unsupported request %T", req))
	}
	return OK()
}

func (e *Engine) create(ctx context.Context, connID string, r CreateRoom) *Reply {
	if _, bound := e.bindings.SessionOf(connID); bound {
		e.Leave(connID)
	}
	sess, err := e.store.Create(ctx, strings.TrimSpace(r.ProblemSlug), connID)
	if err != nil {
		e.logger.Error("create room", zap.String("conn_id", connID), zap.Error(err))
		return Fail(err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	e.observer.Observe(LifecycleEvent{
		Kind:         LifecycleCreated,
		Code:         sess.Code,
		ConnID:       connID,
		Participants: len(sess.participants),
		Problem:      sess.CurrentProblem,
		At:           sess.CreatedAt,
	})
	return &Reply{Success: true, Snapshot: sess.snapshot(connID, e.replay)}
}

func (e *Engine) join(connID string, r JoinRoom) *Reply {
	code := NormalizeCode(r.Code)
	if current, bound := e.bindings.SessionOf(connID); bound {
		if current == code {
			if sess, ok := e.lockParticipant(connID); ok {
				defer sess.mu.Unlock()
				return &Reply{Success: true, Snapshot: sess.snapshot(connID, e.replay)}
			}
		}
		e.Leave(connID)
	}

	sess, err := e.store.Get(code)
	if err != nil {
		return Fail(ErrRoomNotFound)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return Fail(ErrRoomNotFound)
	}
	if len(sess.participants) >= MaxParticipants {
		return Fail(ErrRoomFull)
	}

	sess.addParticipant(connID)
	e.bindings.Bind(connID, code)
	count := len(sess.participants)
	e.broadcaster.ToAllExcept(code, connID, Event{EventUserJoined, MembershipPayload{Count: count, UserID: connID}})
	e.observer.Observe(LifecycleEvent{
		Kind:         LifecycleJoined,
		Code:         code,
		ConnID:       connID,
		Participants: count,
		Problem:      sess.CurrentProblem,
		At:           e.now(),
	})
	e.logger.Info("user joined room", zap.String("code", code), zap.String("conn_id", connID), zap.Int("participants", count))
	return &Reply{Success: true, Snapshot: sess.snapshot(connID, e.replay)}
}

// Leave removes connID from its session and deletes the session when it becomes empty.
// It reports whether the connection was a participant of a live session.
func (e *Engine) Leave(connID string) bool {
	code, ok := e.bindings.SessionOf(connID)
	if !ok {
		return false
	}
	sess, err := e.store.Get(code)
	if err != nil {
		e.bindings.Unbind(connID)
		return false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	e.bindings.Unbind(connID)
	if sess.closed || !sess.removeParticipant(connID) {
		return false
	}

	now := e.now()
	remaining := len(sess.participants)
	e.observer.Observe(LifecycleEvent{
		Kind:         LifecycleLeft,
		Code:         code,
		ConnID:       connID,
		Participants: remaining,
		Problem:      sess.CurrentProblem,
		At:           now,
	})
	e.logger.Info("user left room", zap.String("code", code), zap.String("conn_id", connID), zap.Int("participants", remaining))

	if remaining == 0 {
		sess.closed = true
		e.store.Delete(code)
		e.observer.Observe(LifecycleEvent{
			Kind:       LifecycleClosed,
			Code:       code,
			Problem:    sess.CurrentProblem,
			At:         now,
			Transcript: sess.transcript(now),
		})
		return true
	}
	e.broadcaster.ToAllExcept(code, connID, Event{EventUserLeft, MembershipPayload{Count: remaining, UserID: connID}})
	return true
}

// lockParticipant returns the caller's session locked, or false if the caller is not a
// participant of a live session. The caller must unlock sess.mu.
func (e *Engine) lockParticipant(connID string) (*Session, bool) {
	code, ok := e.bindings.SessionOf(connID)
	if !ok {
		return nil, false
	}
	sess, err := e.store.Get(code)
	if err != nil {
		return nil, false
	}
	sess.mu.Lock()
	if sess.closed || !sess.hasParticipant(connID) {
		sess.mu.Unlock()
		return nil, false
	}
	return sess, true
}

func (e *Engine) starter(problem string, lang Language) string {
	if e.starters == nil {
		return ""
	}
	if code, ok := e.starters.Starter(problem, lang); ok {
		return code
	}
	if code, ok := e.starters.Starter(DefaultProblem, lang); ok {
		return code
	}
	return ""
}

// NormalizeCode upper-cases a user-typed room code and strips surrounding whitespace.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
