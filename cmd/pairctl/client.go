package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pairprep/backend/internal/catalog"
	"github.com/pairprep/backend/internal/realtime"
	"github.com/pairprep/backend/internal/room"
)

// apiError is a non-2xx answer from the server, with its envelope decoded.
type apiError struct {
	Status int
	Body   envelope
}

func (e *apiError) Error() string {
	if e.Body.Error != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Body.Error)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string, timeout time.Duration) (*apiClient, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid server url %q", base)
	}
	return &apiClient{base: u.String(), http: &http.Client{Timeout: timeout}}, nil
}

// get fetches path and decodes the envelope's data into out.
func (c *apiClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if resp.StatusCode/100 != 2 || !env.Success {
		return &apiError{Status: resp.StatusCode, Body: env}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *apiClient) health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	return out, c.get(ctx, "/health", &out)
}

func (c *apiClient) room(ctx context.Context, code string) (*room.Info, error) {
	var info room.Info
	if err := c.get(ctx, "/rooms/"+url.PathEscape(room.NormalizeCode(code)), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

type problemList struct {
	Problems []catalog.Summary `json:"problems"`
	Total    int               `json:"total"`
}

func (c *apiClient) problems(ctx context.Context, query string) (*problemList, error) {
	path := "/problems"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var out problemList
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// wsURL maps the REST base onto the WebSocket endpoint.
func (c *apiClient) wsURL() string {
	u, _ := url.Parse(c.base)
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

type probeResult struct {
	Code    string
	Problem string
	RTT     time.Duration
}

// probe creates a throwaway room, pings through it and leaves again.
func (c *apiClient) probe(ctx context.Context, problem string) (*probeResult, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.wsURL(), err)
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
		_ = conn.SetWriteDeadline(dl)
	}

	created, err := call(conn, "1", realtime.EventCreateRoom, room.CreateRoom{ProblemSlug: problem})
	if err != nil {
		return nil, err
	}
	if created.Snapshot == nil || created.Code == "" {
		return nil, errors.New("create-room ack carried no room code")
	}
	res := &probeResult{Code: created.Code, Problem: created.CurrentProblem}

	start := time.Now()
	if _, err := call(conn, "2", realtime.EventPing, nil); err != nil {
		return nil, err
	}
	res.RTT = time.Since(start)

	if _, err := call(conn, "3", realtime.EventLeaveRoom, nil); err != nil {
		return nil, err
	}
	return res, nil
}

// call sends one request frame and waits for the ack with the same id.
// Broadcast frames arriving in between are skipped.
func call(conn *websocket.Conn, id, event string, payload any) (*room.Reply, error) {
	msg := realtime.WSMessage{Event: event, ID: id}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Data = data
	}
	if err := conn.WriteJSON(msg); err != nil {
		return nil, fmt.Errorf("send %s: %w", event, err)
	}
	for {
		var in realtime.WSMessage
		if err := conn.ReadJSON(&in); err != nil {
			return nil, fmt.Errorf("await %s ack: %w", event, err)
		}
		if in.Event != realtime.EventAck || in.ID != id {
			continue
		}
		var reply room.Reply
		if err := json.Unmarshal(in.Data, &reply); err != nil {
			return nil, fmt.Errorf("decode %s ack: %w", event, err)
		}
		if !reply.Success {
			return nil, fmt.Errorf("%s failed: %s", event, reply.Error)
		}
		return &reply, nil
	}
}
