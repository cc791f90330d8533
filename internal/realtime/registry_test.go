package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pairprep/backend/internal/room"
)

type recordingSink struct {
	mu   sync.Mutex
	msgs []WSMessage
	full bool
}

func (s *recordingSink) Send(msg WSMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.msgs = append(s.msgs, msg)
	return true
}

func (s *recordingSink) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.msgs {
		out = append(out, m.Event)
	}
	return out
}

func TestRegistryBindAndMembers(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", &recordingSink{})
	reg.Register("b", &recordingSink{})
	assert.Equal(t, 2, reg.Count())

	reg.Bind("a", "ROOM01")
	reg.Bind("b", "ROOM01")
	assert.Equal(t, []string{"a", "b"}, reg.Members("ROOM01"))

	code, ok := reg.SessionOf("b")
	require.True(t, ok)
	assert.Equal(t, "ROOM01", code)

	reg.Bind("a", "ROOM02")
	assert.Equal(t, []string{"b"}, reg.Members("ROOM01"))
	assert.Equal(t, []string{"a"}, reg.Members("ROOM02"))

	assert.Equal(t, "ROOM01", reg.Unbind("b"))
	assert.Empty(t, reg.Members("ROOM01"))
	assert.Equal(t, "", reg.Unbind("b"))
}

func TestRegistryUnregisterDropsBinding(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", &recordingSink{})
	reg.Bind("a", "ROOM01")

	reg.Unregister("a")
	_, ok := reg.SessionOf("a")
	assert.False(t, ok)
	_, ok = reg.Sink("a")
	assert.False(t, ok)
	assert.Zero(t, reg.Count())
	assert.Empty(t, reg.Members("ROOM01"))
}

func TestRegistryMembersReturnsCopy(t *testing.T) {
	reg := NewRegistry()
	reg.Bind("a", "ROOM01")
	members := reg.Members("ROOM01")
	members[0] = "mutated"
	assert.Equal(t, []string{"a"}, reg.Members("ROOM01"))
}

func TestDispatcherFanOut(t *testing.T) {
	reg := NewRegistry()
	a, b, other := &recordingSink{}, &recordingSink{}, &recordingSink{}
	reg.Register("a", a)
	reg.Register("b", b)
	reg.Register("other", other)
	reg.Bind("a", "ROOM01")
	reg.Bind("b", "ROOM01")
	reg.Bind("other", "ROOM02")

	d := NewDispatcher(reg, zap.NewNop())
	d.ToAllExcept("ROOM01", "a", room.Event{Name: room.EventCodeUpdate, Payload: room.CodeUpdatePayload{Code: "x", SenderID: "a"}})
	d.ToAll("ROOM01", room.Event{Name: room.EventTimerReset, Payload: struct{}{}})
	d.ToOne("other", room.Event{Name: room.EventUserLeft, Payload: room.MembershipPayload{Count: 1}})

	assert.Equal(t, []string{room.EventTimerReset}, a.events())
	assert.Equal(t, []string{room.EventCodeUpdate, room.EventTimerReset}, b.events())
	assert.Equal(t, []string{room.EventUserLeft}, other.events())
	assert.JSONEq(t, `{"code":"x","senderId":"a"}`, string(b.msgs[0].Data))
}

func TestDispatcherDropsWhenSinkIsFull(t *testing.T) {
	reg := NewRegistry()
	full, ok := &recordingSink{full: true}, &recordingSink{}
	reg.Register("full", full)
	reg.Register("ok", ok)
	reg.Bind("full", "ROOM01")
	reg.Bind("ok", "ROOM01")

	d := NewDispatcher(reg, nil)
	d.ToAll("ROOM01", room.Event{Name: room.EventWhiteboardClr, Payload: struct{}{}})

	assert.Empty(t, full.events())
	assert.Equal(t, []string{room.EventWhiteboardClr}, ok.events())
}

func TestDispatcherSkipsUnregisteredMembers(t *testing.T) {
	reg := NewRegistry()
	reg.Bind("ghost", "ROOM01")
	d := NewDispatcher(reg, nil)
	assert.NotPanics(t, func() {
		d.ToAll("ROOM01", room.Event{Name: room.EventTimerReset, Payload: struct{}{}})
	})
}
