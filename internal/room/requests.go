package room

// Request is the closed set of inbound requests the Engine understands.
type Request interface {
	request()
}

type CreateRoom struct {
	ProblemSlug string `json:"problemSlug" validate:"omitempty,max=64"`
}

type JoinRoom struct {
	Code string `json:"code" validate:"required,min=6,max=8,alphanum"`
}

type LeaveRoom struct{}

type ChangeCode struct {
	Code string `json:"code" validate:"max=262144"`
}

type ChangeLanguage struct {
	Language Language `json:"language" validate:"required,oneof=javascript python java cpp"`
}

// Draw carries one stroke; the payload fields sit at the top level of the frame.
type Draw struct {
	Stroke
}

type ClearBoard struct{}

type SendChat struct {
	Message  string `json:"message" validate:"max=2000"`
	Username string `json:"username" validate:"max=64"`
}

type ChangeProblem struct {
	ProblemSlug string `json:"problemSlug" validate:"required,max=64"`
	StarterCode string `json:"starterCode" validate:"max=65536"`
}

// StartTimer starts the countdown. A zero Duration keeps the current duration.
type StartTimer struct {
	Duration int `json:"duration" validate:"gte=0,lte=86400"`
}

type PauseTimer struct{}

type ResetTimer struct{}

type ChangeViewMode struct {
	ViewMode ViewMode `json:"viewMode" validate:"required,oneof=hybrid whiteboard"`
}

type ToggleViewLock struct {
	Locked bool `json:"locked"`
}

type RoomInfo struct{}

type Ping struct{}

func (CreateRoom) request()     {}
func (JoinRoom) request()       {}
func (LeaveRoom) request()      {}
func (ChangeCode) request()     {}
func (ChangeLanguage) request() {}
func (Draw) request()           {}
func (ClearBoard) request()     {}
func (SendChat) request()       {}
func (ChangeProblem) request()  {}
func (StartTimer) request()     {}
func (PauseTimer) request()     {}
func (ResetTimer) request()     {}
func (ChangeViewMode) request() {}
func (ToggleViewLock) request() {}
func (RoomInfo) request()       {}
func (Ping) request()           {}
