package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"DMPlayer/core/playback"
	"DMPlayer/logger"
	"DMPlayer/model"
)

// Client talks to a DMPlayer server on behalf of the playback engine.
// It implements playback.ProjectLoader and playback.CueStore.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient 创建新的API客户端
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetTimeout 设置API请求超时时间，不影响音频下载
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API返回错误状态码: %d (%s)", e.Code, e.Message)
	}
	return fmt.Sprintf("API返回错误状态码: %d", e.Code)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
		return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

// GetProject loads a project snapshot for the engine.
func (c *Client) GetProject(ctx context.Context, id string) (playback.Project, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil)
	if err != nil {
		return playback.Project{}, err
	}
	var detail model.ProjectDetail
	if err := c.do(req, &detail); err != nil {
		return playback.Project{}, err
	}
	return ToPlayback(&detail), nil
}

// UpdateCueTime persists a cue's new time.
func (c *Client) UpdateCueTime(ctx context.Context, projectID, cueID string, seconds float64) error {
	path := fmt.Sprintf("/api/projects/%s/cues/%s", url.PathEscape(projectID), url.PathEscape(cueID))
	req, err := c.newRequest(ctx, http.MethodPut, path, map[string]float64{"time": seconds})
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return err
	}
	logger.Debug("cue time saved", logger.String("cue", cueID), logger.Float64("time", seconds))
	return nil
}

// TrackURL is a playback.Locator resolving to the server's audio route.
func (c *Client) TrackURL(projectID, trackID string) string {
	return c.baseURL + playback.DefaultLocator(url.PathEscape(projectID), url.PathEscape(trackID))
}

// Open fetches audio bytes. It is a playback.Fetcher. The request is not
// bound by the API timeout since the body is streamed while playing.
func (c *Client) Open(ctx context.Context, audioURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return resp.Body, nil
}

// ToPlayback converts a stored project into the engine's snapshot.
func ToPlayback(d *model.ProjectDetail) playback.Project {
	p := playback.Project{ID: d.ID}
	for _, t := range d.Tracks {
		p.Tracks = append(p.Tracks, toTrack(t))
	}
	for _, c := range d.CuePoints {
		p.CuePoints = append(p.CuePoints, playback.CuePoint{ID: c.ID, Time: c.Time})
	}
	return p
}

func toTrack(t model.Track) playback.Track {
	name := t.DisplayName
	if name == "" {
		name = t.OriginalName
	}
	return playback.Track{ID: t.ID, DisplayName: name, Duration: t.Duration}
}
