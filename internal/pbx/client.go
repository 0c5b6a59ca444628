package pbx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client issues control commands to the telephony switch over its REST-like
// API. It is stateless aside from the underlying HTTP connection pool, and
// every command is bounded by the configured timeout.
type Client struct {
	baseURL  string
	username string
	password string
	appName  string

	http *http.Client
}

type ClientConfig struct {
	BaseURL  string
	Username string
	Password string
	AppName  string

	// Timeout bounds one command round-trip. A hung control call must not
	// stall event processing for other channels.
	Timeout time.Duration
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
		appName:  cfg.AppName,
		http:     &http.Client{Timeout: timeout},
	}
}

// CommandError is a failed switch command with a machine-readable reason.
type CommandError struct {
	Op     string
	Status int
	Reason string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("pbx: %s failed: status=%d reason=%q", e.Op, e.Status, e.Reason)
}

// Endpoint is a registered device on the switch.
type Endpoint struct {
	Technology string `json:"technology"`
	Resource   string `json:"resource"`
	State      string `json:"state"`
}

// DeviceState pairs a device name with its current state string.
type DeviceState struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

func (c *Client) Channels(ctx context.Context) ([]Channel, error) {
	var out []Channel
	if err := c.get(ctx, "channels", "/channels", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Endpoints(ctx context.Context) ([]Endpoint, error) {
	var out []Endpoint
	if err := c.get(ctx, "endpoints", "/endpoints", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeviceStates(ctx context.Context) ([]DeviceState, error) {
	var out []DeviceState
	if err := c.get(ctx, "deviceStates", "/deviceStates", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Answer(ctx context.Context, channelID string) error {
	return c.do(ctx, "answer", http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/answer", nil, nil)
}

func (c *Client) Hangup(ctx context.Context, channelID string) error {
	return c.do(ctx, "hangup", http.MethodDelete, "/channels/"+url.PathEscape(channelID), nil, nil)
}

type OriginateRequest struct {
	// Extension is the target to dial, e.g. an operator extension.
	Extension string
	// DialContext is the dialplan context; defaults to "internal".
	DialContext string
	// TimeoutSeconds bounds ringing; defaults to 30.
	TimeoutSeconds int
}

// Originate asks the switch to place a call to an extension and hand the
// new channel to our application.
func (c *Client) Originate(ctx context.Context, req OriginateRequest) error {
	dialContext := req.DialContext
	if dialContext == "" {
		dialContext = "internal"
	}
	timeout := req.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	body := map[string]any{
		"endpoint": "PJSIP/" + req.Extension,
		"context":  dialContext,
		"priority": 1,
		"timeout":  timeout,
		"app":      c.appName,
	}
	return c.do(ctx, "originate", http.MethodPost, "/channels", body, nil)
}

// RedirectToQueue moves a channel out of our application into the dialplan
// context that runs the named queue.
func (c *Client) RedirectToQueue(ctx context.Context, channelID, queue string) error {
	body := map[string]any{
		"context":   "queues",
		"extension": queue,
		"priority":  1,
	}
	return c.do(ctx, "redirectToQueue", http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/continue", body, nil)
}

// PlayAnnouncement plays a sound on a channel (interactive menu prompts,
// after-hours messages).
func (c *Client) PlayAnnouncement(ctx context.Context, channelID, soundID string) error {
	body := map[string]any{
		"media": "sound:" + soundID,
	}
	return c.do(ctx, "playAnnouncement", http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/play", body, nil)
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	return c.do(ctx, op, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("pbx: encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("pbx: build %s request: %w", op, err)
	}
	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pbx: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &CommandError{Op: op, Status: resp.StatusCode, Reason: readReason(resp.Body)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("pbx: decode %s response: %w", op, err)
		}
	}
	return nil
}

// readReason pulls the switch's error message out of a failure body.
func readReason(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return string(data)
}
