package room

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegistry is an in-memory Bindings + Broadcaster that records every delivery.
type fakeRegistry struct {
	mu      sync.Mutex
	byConn  map[string]string
	members map[string][]string
	inbox   map[string][]Event
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		byConn:  make(map[string]string),
		members: make(map[string][]string),
		inbox:   make(map[string][]Event),
	}
}

func (f *fakeRegistry) Bind(connID, code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unbindLocked(connID)
	f.byConn[connID] = code
	f.members[code] = append(f.members[code], connID)
}

func (f *fakeRegistry) Unbind(connID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unbindLocked(connID)
}

func (f *fakeRegistry) unbindLocked(connID string) string {
	code, ok := f.byConn[connID]
	if !ok {
		return ""
	}
	delete(f.byConn, connID)
	list := f.members[code]
	for i, id := range list {
		if id == connID {
			f.members[code] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(f.members[code]) == 0 {
		delete(f.members, code)
	}
	return code
}

func (f *fakeRegistry) SessionOf(connID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	code, ok := f.byConn[connID]
	return code, ok
}

func (f *fakeRegistry) ToOne(connID string, ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbox[connID] = append(f.inbox[connID], ev)
}

func (f *fakeRegistry) ToAll(code string, ev Event) {
	f.ToAllExcept(code, "", ev)
}

func (f *fakeRegistry) ToAllExcept(code, senderID string, ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.members[code] {
		if id != senderID {
			f.inbox[id] = append(f.inbox[id], ev)
		}
	}
}

func (f *fakeRegistry) events(connID string) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.inbox[connID]...)
}

func (f *fakeRegistry) names(connID string) []string {
	var out []string
	for _, ev := range f.events(connID) {
		out = append(out, ev.Name)
	}
	return out
}

func (f *fakeRegistry) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbox = make(map[string][]Event)
}

type recordingObserver struct {
	mu     sync.Mutex
	events []LifecycleEvent
}

func (o *recordingObserver) Observe(ev LifecycleEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

func (o *recordingObserver) kinds() []LifecycleKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []LifecycleKind
	for _, ev := range o.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (o *recordingObserver) last() LifecycleEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.events[len(o.events)-1]
}

type starterMap map[string]map[Language]string

func (m starterMap) Starter(slug string, lang Language) (string, bool) {
	code, ok := m[slug][lang]
	return code, ok
}

var testStarters = starterMap{
	"two-sum": {
		LangJavaScript: "function twoSum(nums, target) {\n}",
		LangPython:     "def two_sum(nums, target):\n    pass",
	},
	"valid-parentheses": {
		LangJavaScript: "function isValid(s) {\n}",
		LangPython:     "def is_valid(s):\n    pass",
	},
}

type harness struct {
	engine   *Engine
	reg      *fakeRegistry
	observer *recordingObserver
	now      time.Time
}

func newHarness(t *testing.T, replay bool) *harness {
	t.Helper()
	h := &harness{
		reg:      newFakeRegistry(),
		observer: &recordingObserver{},
		now:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	seq := 0
	store := NewStore(StoreOptions{Bindings: h.reg, Now: func() time.Time { return h.now }})
	h.engine = NewEngine(EngineOptions{
		Store:            store,
		Bindings:         h.reg,
		Broadcaster:      h.reg,
		Starters:         testStarters,
		Observer:         h.observer,
		Now:              func() time.Time { return h.now },
		NewID:            func() string { seq++; return fmt.Sprintf("msg-%d", seq) },
		WhiteboardReplay: replay,
		MaxStrokes:       3,
	})
	return h
}

func (h *harness) do(connID string, req Request) *Reply {
	return h.engine.Handle(context.Background(), connID, req)
}

func (h *harness) create(t *testing.T, connID string) string {
	t.Helper()
	reply := h.do(connID, CreateRoom{})
	require.NotNil(t, reply)
	require.True(t, reply.Success, reply.Error)
	return reply.Code
}

func (h *harness) pair(t *testing.T) string {
	t.Helper()
	code := h.create(t, "c1")
	reply := h.do("c2", JoinRoom{Code: code})
	require.True(t, reply.Success, reply.Error)
	h.reg.reset()
	return code
}

func (h *harness) session(t *testing.T, code string) *Session {
	t.Helper()
	sess, err := h.engine.Store().Get(code)
	require.NoError(t, err)
	return sess
}

func TestScenarioCreateJoinChatLanguageFull(t *testing.T) {
	h := newHarness(t, false)

	created := h.do("c1", CreateRoom{})
	require.True(t, created.Success)
	assert.True(t, created.IsCreator)
	assert.Equal(t, 1, created.ParticipantCount)
	assert.Equal(t, DefaultProblem, created.CurrentProblem)
	code := created.Code

	joined := h.do("c2", JoinRoom{Code: code})
	require.True(t, joined.Success)
	assert.Equal(t, code, joined.Code)
	assert.False(t, joined.IsCreator)
	assert.Equal(t, 2, joined.ParticipantCount)
	assert.Equal(t, "", joined.CodeContent)
	assert.Equal(t, LangJavaScript, joined.CurrentLanguage)
	assert.Empty(t, joined.ChatLog)
	assert.Equal(t, []Event{{EventUserJoined, MembershipPayload{Count: 2, UserID: "c2"}}}, h.reg.events("c1"))
	assert.Empty(t, h.reg.events("c2"))
	h.reg.reset()

	chat := h.do("c2", SendChat{Message: "hello", Username: "Alice"})
	require.True(t, chat.Success)
	want := ChatMessage{ID: "msg-1", SenderID: "c2", DisplayName: "Alice", Text: "hello", Timestamp: h.now}
	assert.Equal(t, []Event{{EventNewMessage, want}}, h.reg.events("c1"))
	assert.Equal(t, []Event{{EventNewMessage, want}}, h.reg.events("c2"))
	assert.Len(t, h.session(t, code).ChatLog, 1)
	h.reg.reset()

	lang := h.do("c2", ChangeLanguage{Language: LangPython})
	require.True(t, lang.Success)
	update := Event{EventLanguageUpdate, LanguageUpdatePayload{Language: LangPython, Code: testStarters["two-sum"][LangPython]}}
	assert.Equal(t, []Event{update}, h.reg.events("c1"))
	assert.Equal(t, []Event{update}, h.reg.events("c2"))

	full := h.do("c3", JoinRoom{Code: code})
	require.NotNil(t, full)
	assert.False(t, full.Success)
	assert.Equal(t, "Room is full", full.Error)
	assert.ErrorIs(t, full.Err(), ErrRoomFull)
	assert.Equal(t, []string{"c1", "c2"}, h.session(t, code).Participants())
	_, bound := h.reg.SessionOf("c3")
	assert.False(t, bound)
}

func TestJoinUnknownRoom(t *testing.T) {
	h := newHarness(t, false)
	reply := h.do("c1", JoinRoom{Code: "NOPE42"})
	assert.False(t, reply.Success)
	assert.Equal(t, "Room not found", reply.Error)
}

func TestJoinNormalizesCode(t *testing.T) {
	h := newHarness(t, false)
	code := h.create(t, "c1")
	reply := h.do("c2", JoinRoom{Code: "  " + strings.ToLower(code) + " "})
	require.True(t, reply.Success, reply.Error)
	assert.Equal(t, code, reply.Code)
}

func TestRejoinSameRoomReturnsSnapshotWithoutMutation(t *testing.T) {
	h := newHarness(t, false)
	code := h.pair(t)

	reply := h.do("c2", JoinRoom{Code: code})
	require.True(t, reply.Success)
	assert.Equal(t, 2, reply.ParticipantCount)
	assert.Empty(t, h.reg.events("c1"))
	assert.Equal(t, []string{"c1", "c2"}, h.session(t, code).Participants())
}

func TestCreateWhileInRoomLeavesPreviousRoom(t *testing.T) {
	h := newHarness(t, false)
	code := h.pair(t)

	next := h.create(t, "c2")
	assert.NotEqual(t, code, next)
	assert.Equal(t, []string{"c1"}, h.session(t, code).Participants())
	assert.Equal(t, []Event{{EventUserLeft, MembershipPayload{Count: 1, UserID: "c2"}}}, h.reg.events("c1"))
}

func TestChangeProblemRequiresCreator(t *testing.T) {
	h := newHarness(t, false)
	code := h.pair(t)
	h.do("c1", ChangeCode{Code: "let x = 1"})
	h.reg.reset()

	reply := h.do("c2", ChangeProblem{ProblemSlug: "valid-parentheses", StarterCode: "x"})
	assert.False(t, reply.Success)
	assert.Equal(t, "Unauthorized", reply.Error)

	sess := h.session(t, code)
	assert.Equal(t, "two-sum", sess.CurrentProblem)
	assert.Equal(t, "let x = 1", sess.CodeContent)
	assert.Empty(t, h.reg.events("c1"))
	assert.Empty(t, h.reg.events("c2"))
}

func TestChangeProblemByCreator(t *testing.T) {
	h := newHarness(t, false)
	code := h.pair(t)

	reply := h.do("c1", ChangeProblem{ProblemSlug: "valid-parentheses", StarterCode: "custom"})
	require.True(t, reply.Success)
	ev := Event{EventProblemChanged, ProblemChangedPayload{Slug: "valid-parentheses", Code: "custom"}}
	assert.Equal(t, []Event{ev}, h.reg.events("c1"))
	assert.Equal(t, []Event{ev}, h.reg.events("c2"))
	assert.Equal(t, "custom", h.session(t, code).CodeContent)

	h.reg.reset()
	reply = h.do("c1", ChangeProblem{ProblemSlug: "two-sum"})
	require.True(t, reply.Success)
	assert.Equal(t, testStarters["two-sum"][LangJavaScript], h.session(t, code).CodeContent)
}

func TestBlankChatIsRejected(t *testing.T) {
	h := newHarness(t, false)
	code := h.pair(t)

	reply := h.do("c1", SendChat{Message: "   \n\t", Username: "Alice"})
	assert.False(t, reply.Success)
	assert.ErrorIs(t, reply.Err(), ErrInvalidInput)
	assert.Empty(t, h.session(t, code).ChatLog)
	assert.Empty(t, h.reg.events("c1"))
	assert.Empty(t, h.reg.events("c2"))
}

func TestChatLogKeepsAcceptanceOrder(t *testing.T) {
	h := newHarness(t, false)
	code := h.pair(t)

	h.do("c1", SendChat{Message: "one"})
	h.do("c2", SendChat{Message: " two ", Username: "Bob"})
	h.do("c1", SendChat{Message: "three"})

	log := h.session(t, code).ChatLog
	require.Len(t, log, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{log[0].Text, log[1].Text, log[2].Text})
	assert.Equal(t, defaultDisplayName, log[0].DisplayName)
	assert.Equal(t, "Bob", log[1].DisplayName)
	assert.Equal(t, "msg-3", log[2].ID)
}

func TestCodeChangeExcludesSender(t *testing.T) {
	h := newHarness(t, false)
	code := h.pair(t)

	reply := h.do("c1", ChangeCode{Code: "console.log(1)"})
	require.True(t, reply.Success)
	assert.Empty(t, h.reg.events("c1"))
	assert.Equal(t, []Event{{EventCodeUpdate, CodeUpdatePayload{Code: "console.log(1)", SenderID: "c1"}}}, h.reg.events("c2"))
	assert.Equal(t, "console.log(1)", h.session(t, code).CodeContent)

	h.reg.reset()
	h.do("c2", ChangeCode{Code: "console.log(2)"})
	assert.Equal(t, "console.log(2)", h.session(t, code).CodeContent)
}

func TestLanguageChangeIncludesSender(t *testing.T) {
	h := newHarness(t, false)
	h.pair(t)

	h.do("c1", ChangeLanguage{Language: LangPython})
	assert.Equal(t, []string{EventLanguageUpdate}, h.reg.names("c1"))
	assert.Equal(t, []string{EventLanguageUpdate}, h.reg.names("c2"))
}

func TestLanguageChangeFallsBackToDefaultProblemStarter(t *testing.T) {
	h := newHarness(t, false)
	code := h.pair(t)
	h.do("c1", ChangeProblem{ProblemSlug: "unknown-problem", StarterCode: "x"})

	h.do("c2", ChangeLanguage{Language: LangPython})
	assert.Equal(t, testStarters["two-sum"][LangPython], h.session(t, code).CodeContent)
}

func TestLanguageChangeRejectsUnknownLanguage(t *testing.T) {
	h := newHarness(t, false)
	code := h.pair(t)

	reply := h.do("c1", ChangeLanguage{Language: "cobol"})
	assert.ErrorIs(t, reply.Err(), ErrInvalidInput)
	assert.Equal(t, LangJavaScript, h.session(t, code).CurrentLanguage)
}

func TestWhiteboardFanOut(t *testing.T) {
	h := newHarness(t, false)
	code := h.pair(t)
	stroke := Stroke{X: 1, Y: 2, PrevX: 0, PrevY: 0, Color: "#000", LineWidth: 2}

	h.do("c1", Draw{Stroke: stroke})
	h.do("c1", ClearBoard{})
	assert.Empty(t, h.reg.events("c1"))
	assert.Equal(t, []Event{{EventWhiteboardDraw, stroke}, {EventWhiteboardClr, emptyPayload{}}}, h.reg.events("c2"))
	assert.Empty(t, h.session(t, code).Strokes)
}

func TestWhiteboardReplay(t *testing.T) {
	h := newHarness(t, true)
	code := h.create(t, "c1")

	for i := 0; i < 2; i++ {
		h.do("c1", Draw{Stroke: Stroke{X: float64(i)}})
	}
	h.do("c1", ClearBoard{})
	for i := 10; i < 15; i++ {
		h.do("c1", Draw{Stroke: Stroke{X: float64(i)}})
	}

	reply := h.do("c2", JoinRoom{Code: code})
	require.True(t, reply.Success)
	require.Len(t, reply.Strokes, 3)
	assert.Equal(t, []float64{12, 13, 14}, []float64{reply.Strokes[0].X, reply.Strokes[1].X, reply.Strokes[2].X})
}

func TestTimerLifecycle(t *testing.T) {
	h := newHarness(t, false)
	code := h.pair(t)

	h.do("c2", StartTimer{Duration: 1800})
	sess := h.session(t, code)
	require.NotNil(t, sess.Timer.StartedAt)
	assert.Equal(t, h.now, *sess.Timer.StartedAt)
	assert.Equal(t, 1800, sess.Timer.Duration)
	assert.Equal(t, []Event{{EventTimerStarted, TimerStartedPayload{StartedAt: h.now, Duration: 1800}}}, h.reg.events("c2"))

	h.do("c1", PauseTimer{})
	assert.True(t, sess.Timer.Paused)
	h.do("c1", PauseTimer{})
	assert.False(t, sess.Timer.Paused)

	h.do("c1", StartTimer{})
	assert.Equal(t, 1800, sess.Timer.Duration)

	h.do("c2", ResetTimer{})
	assert.Nil(t, sess.Timer.StartedAt)
	assert.False(t, sess.Timer.Paused)

	assert.Equal(t, []string{
		EventTimerStarted, EventTimerPaused, EventTimerPaused, EventTimerStarted, EventTimerReset,
	}, h.reg.names("c1"))
	assert.Equal(t, h.reg.names("c1"), h.reg.names("c2"))
}

func TestViewModeAndLock(t *testing.T) {
	h := newHarness(t, false)
	code := h.pair(t)

	reply := h.do("c2", ChangeViewMode{ViewMode: ViewWhiteboard})
	require.True(t, reply.Success)
	assert.Equal(t, ViewWhiteboard, h.session(t, code).ViewMode)
	assert.Equal(t, []string{EventViewModeUpdate}, h.reg.names("c2"))

	reply = h.do("c2", ToggleViewLock{Locked: true})
	assert.ErrorIs(t, reply.Err(), ErrUnauthorized)

	reply = h.do("c1", ToggleViewLock{Locked: true})
	require.True(t, reply.Success)

	reply = h.do("c2", ChangeViewMode{ViewMode: ViewHybrid})
	assert.ErrorIs(t, reply.Err(), ErrUnauthorized)
	assert.Equal(t, ViewWhiteboard, h.session(t, code).ViewMode)

	reply = h.do("c1", ChangeViewMode{ViewMode: ViewHybrid})
	require.True(t, reply.Success)
	assert.Equal(t, ViewHybrid, h.session(t, code).ViewMode)
}

func TestCreatorAuthorityDoesNotTransfer(t *testing.T) {
	h := newHarness(t, false)
	code := h.pair(t)

	require.True(t, h.engine.Leave("c1"))
	assert.Equal(t, []Event{{EventUserLeft, MembershipPayload{Count: 1, UserID: "c1"}}}, h.reg.events("c2"))

	reply := h.do("c2", ToggleViewLock{Locked: true})
	assert.ErrorIs(t, reply.Err(), ErrUnauthorized)

	rejoin := h.do("c1", JoinRoom{Code: code})
	require.True(t, rejoin.Success)
	assert.False(t, rejoin.IsCreator)
	reply = h.do("c1", ChangeProblem{ProblemSlug: "valid-parentheses"})
	assert.ErrorIs(t, reply.Err(), ErrUnauthorized)
}

func TestDisconnectOfSoleParticipantDeletesRoom(t *testing.T) {
	h := newHarness(t, false)
	code := h.create(t, "c1")
	h.do("c1", SendChat{Message: "note to self"})

	assert.True(t, h.engine.Leave("c1"))
	_, err := h.engine.Store().Get(code)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	reply := h.do("c2", JoinRoom{Code: code})
	assert.ErrorIs(t, reply.Err(), ErrRoomNotFound)

	assert.Equal(t, []LifecycleKind{LifecycleCreated, LifecycleLeft, LifecycleClosed}, h.observer.kinds())
	closed := h.observer.last()
	require.NotNil(t, closed.Transcript)
	assert.Equal(t, code, closed.Transcript.Code)
	require.Len(t, closed.Transcript.ChatLog, 1)
	assert.Equal(t, "note to self", closed.Transcript.ChatLog[0].Text)
}

func TestLeaveWithoutRoomIsNoop(t *testing.T) {
	h := newHarness(t, false)
	assert.False(t, h.engine.Leave("ghost"))
	assert.Nil(t, h.do("ghost", LeaveRoom{}))
}

func TestRequestsFromUnboundConnectionsAreDropped(t *testing.T) {
	h := newHarness(t, false)
	code := h.pair(t)

	for _, req := range []Request{
		ChangeCode{Code: "x"},
		ChangeLanguage{Language: LangPython},
		Draw{},
		ClearBoard{},
		SendChat{Message: "hi"},
		ChangeProblem{ProblemSlug: "two-sum"},
		StartTimer{Duration: 10},
		PauseTimer{},
		ResetTimer{},
		ChangeViewMode{ViewMode: ViewWhiteboard},
		ToggleViewLock{Locked: true},
	} {
		assert.Nil(t, h.do("stranger", req), "%T", req)
	}
	assert.Empty(t, h.reg.events("c1"))
	assert.Empty(t, h.session(t, code).ChatLog)
}

func TestRoomInfo(t *testing.T) {
	h := newHarness(t, false)

	reply := h.do("c1", RoomInfo{})
	assert.ErrorIs(t, reply.Err(), ErrInvalidInput)
	assert.Equal(t, "Invalid input: Not in a room", reply.Error)

	code := h.pair(t)
	reply = h.do("c2", RoomInfo{})
	require.True(t, reply.Success)
	require.NotNil(t, reply.Room)
	assert.Equal(t, code, reply.Room.Code)
	assert.Equal(t, 2, reply.Room.Participants)
}

func TestPing(t *testing.T) {
	h := newHarness(t, false)
	reply := h.do("anyone", Ping{})
	require.True(t, reply.Success)
	require.NotNil(t, reply.Timestamp)
	assert.Equal(t, h.now, *reply.Timestamp)
}

func TestParticipantBoundsUnderConcurrency(t *testing.T) {
	reg := newFakeRegistry()
	store := NewStore(StoreOptions{Bindings: reg})
	engine := NewEngine(EngineOptions{Store: store, Bindings: reg, Broadcaster: reg})

	reply := engine.Handle(context.Background(), "owner", CreateRoom{})
	require.True(t, reply.Success)
	code := reply.Code

	var wg sync.WaitGroup
	var mu sync.Mutex
	joined := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("guest-%d", i)
			if r := engine.Handle(context.Background(), conn, JoinRoom{Code: code}); r.Success {
				mu.Lock()
				joined++
				mu.Unlock()
				engine.Handle(context.Background(), conn, SendChat{Message: "hi"})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, joined)
	sess, err := store.Get(code)
	require.NoError(t, err)
	assert.Len(t, sess.Participants(), MaxParticipants)
}
