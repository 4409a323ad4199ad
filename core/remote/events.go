package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"DMPlayer/core/playback"
	"DMPlayer/core/project"
	"DMPlayer/logger"
	"DMPlayer/model"

	"github.com/gorilla/websocket"
)

// eventsURL builds the websocket address of a project's event stream.
func (c *Client) eventsURL(projectID string) string {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	u := base + "/ws/projects/" + url.PathEscape(projectID)
	if c.token != "" {
		u += "?token=" + url.QueryEscape(c.token)
	}
	return u
}

// Subscribe streams the events of a project to handle until ctx is done or
// the server closes the connection. Ping and pong events are not delivered.
func (c *Client) Subscribe(ctx context.Context, projectID string, handle func(project.Event)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.eventsURL(projectID), nil)
	if err != nil {
		return fmt.Errorf("连接事件流失败: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	for {
		var ev project.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("读取事件失败: %w", err)
		}
		if ev.Type == project.EventPing || ev.Type == project.EventPong {
			continue
		}
		handle(ev)
	}
}

// ApplyEvent mirrors a server-side change into the engine. It must run on
// the engine goroutine. Project level events are ignored.
func ApplyEvent(e *playback.Engine, ev project.Event) error {
	switch ev.Type {
	case project.EventTrackAdded, project.EventTrackDeleted:
		var t model.Track
		if err := json.Unmarshal(ev.Data, &t); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		if ev.Type == project.EventTrackAdded {
			e.AddTrack(toTrack(t))
		} else {
			e.RemoveTrack(t.ID)
		}

	case project.EventCueCreated, project.EventCueUpdated, project.EventCueDeleted:
		var c model.CuePoint
		if err := json.Unmarshal(ev.Data, &c); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		switch ev.Type {
		case project.EventCueCreated:
			e.AddCue(playback.CuePoint{ID: c.ID, Time: c.Time})
		case project.EventCueUpdated:
			e.UpdateCue(playback.CuePoint{ID: c.ID, Time: c.Time})
		default:
			e.RemoveCue(c.ID)
		}

	default:
		logger.Debug("project event ignored", logger.String("type", string(ev.Type)))
	}
	return nil
}
