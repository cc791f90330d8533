package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pairprep/backend/internal/room"
)

// Inbound event names.
const (
	EventCreateRoom     = "create-room"
	EventJoinRoom       = "join-room"
	EventLeaveRoom      = "leave-room"
	EventCodeChange     = "code-change"
	EventLanguageChange = "language-change"
	EventWhiteboardDraw = "whiteboard-draw"
	EventWhiteboardClr  = "whiteboard-clear"
	EventSendMessage    = "send-message"
	EventChangeProblem  = "change-problem"
	EventStartTimer     = "start-timer"
	EventPauseTimer     = "pause-timer"
	EventResetTimer     = "reset-timer"
	EventChangeViewMode = "change-view-mode"
	EventToggleViewLock = "toggle-view-lock"
	EventGetRoomInfo    = "get-room-info"
	EventPing           = "ping"
)

// Reply frames.
const (
	EventAck   = "ack"
	EventError = "error"
)

// WSMessage is the WebSocket message envelope. ID correlates a request with its ack.
type WSMessage struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type decodeFunc func(data json.RawMessage) (room.Request, error)

var validate = newValidator()

var decoders = map[string]decodeFunc{
	EventCreateRoom:     decodeAs[room.CreateRoom](nil),
	EventJoinRoom:       decodeAs(func(r *room.JoinRoom) { r.Code = room.NormalizeCode(r.Code) }),
	EventLeaveRoom:      decodeAs[room.LeaveRoom](nil),
	EventCodeChange:     decodeAs[room.ChangeCode](nil),
	EventLanguageChange: decodeAs[room.ChangeLanguage](nil),
	EventWhiteboardDraw: decodeAs[room.Draw](nil),
	EventWhiteboardClr:  decodeAs[room.ClearBoard](nil),
	EventSendMessage:    decodeAs[room.SendChat](nil),
	EventChangeProblem:  decodeAs[room.ChangeProblem](nil),
	EventStartTimer:     decodeAs[room.StartTimer](nil),
	EventPauseTimer:     decodeAs[room.PauseTimer](nil),
	EventResetTimer:     decodeAs[room.ResetTimer](nil),
	EventChangeViewMode: decodeAs[room.ChangeViewMode](nil),
	EventToggleViewLock: decodeAs[room.ToggleViewLock](nil),
	EventGetRoomInfo:    decodeAs[room.RoomInfo](nil),
	EventPing:           decodeAs[room.Ping](nil),
}

// ErrUnknownEvent is returned by Decode for event names outside the protocol.
var ErrUnknownEvent = errors.New("unknown event")

// Decode turns an inbound frame into a typed request. Malformed or invalid payloads
// are reported as room.ErrInvalidInput.
func Decode(msg WSMessage) (room.Request, error) {
	fn, ok := decoders[msg.Event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Event)
	}
	return fn(msg.Data)
}

func decodeAs[T room.Request](normalize func(*T)) decodeFunc {
	return func(data json.RawMessage) (room.Request, error) {
		var req T
		if len(data) > 0 && string(data) != "null" {
			if err := json.Unmarshal(data, &req); err != nil {
				return nil, fmt.Errorf("%w: malformed payload", room.ErrInvalidInput)
			}
		}
		if normalize != nil {
			normalize(&req)
		}
		if err := validate.Struct(req); err != nil {
			return nil, validationError(err)
		}
		return req, nil
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed %s validation", room.ErrInvalidInput, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", room.ErrInvalidInput, err)
}

func newMessage(event, id string, payload any) (WSMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return WSMessage{}, fmt.Errorf("marshal %s: %w", event, err)
	}
	return WSMessage{Event: event, ID: id, Data: data}, nil
}

// replyMessage builds the frame answering a request: an ack when the request carried an
// id, an error frame for failures without one, and nothing otherwise.
func replyMessage(reqID string, reply *room.Reply) (WSMessage, bool, error) {
	if reply == nil {
		return WSMessage{}, false, nil
	}
	switch {
	case reqID != "":
		msg, err := newMessage(EventAck, reqID, reply)
		return msg, err == nil, err
	case !reply.Success:
		msg, err := newMessage(EventError, "", reply)
		return msg, err == nil, err
	}
	return WSMessage{}, false, nil
}
