// Package backend is a client for the bot backend API that fronts Telegram
// and ArDrive. Every endpoint answers with a JSON envelope carrying a success
// flag and an optional message or error.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/weft/internal/logging"
)

// DefaultTimeout bounds every request when no http.Client is supplied.
const DefaultTimeout = 30 * time.Second

// ErrUnsuccessful is wrapped by every error built from a {"success": false} reply.
var ErrUnsuccessful = errors.New("backend reported failure")

// Envelope is the common response shape. Fields holds the full decoded body.
type Envelope struct {
	Success bool           `mapstructure:"success"`
	Message string         `mapstructure:"message"`
	Error   string         `mapstructure:"error"`
	Fields  map[string]any `mapstructure:",remain"`
}

// Reason returns the best available explanation for a failed call.
func (e Envelope) Reason() string {
	switch {
	case e.Error != "":
		return e.Error
	case e.Message != "":
		return e.Message
	}
	return "unknown error"
}

// Map returns the whole response body, envelope fields included.
func (e Envelope) Map() map[string]any {
	out := make(map[string]any, len(e.Fields)+3)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["success"] = e.Success
	if e.Message != "" {
		out["message"] = e.Message
	}
	if e.Error != "" {
		out["error"] = e.Error
	}
	return out
}

// Client talks to the backend API.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.http.Timeout = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// New creates a client for the API rooted at baseURL (e.g. http://host/api).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host required", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Initialize is the first phase of the bot startup handshake.
func (c *Client) Initialize(ctx context.Context) (Envelope, error) {
	return c.expect(ctx, http.MethodPost, "/telegram/initialize", nil, "initialize bot")
}

// StartBot is the second phase of the bot startup handshake.
func (c *Client) StartBot(ctx context.Context) (Envelope, error) {
	return c.expect(ctx, http.MethodPost, "/telegram/start", nil, "start bot")
}

// StopBot is the teardown handshake.
func (c *Client) StopBot(ctx context.Context) (Envelope, error) {
	return c.expect(ctx, http.MethodPost, "/telegram/stop", nil, "stop bot")
}

// RecentFiles returns the files received by the bot, newest first.
func (c *Client) RecentFiles(ctx context.Context) ([]map[string]any, error) {
	env, err := c.expect(ctx, http.MethodGet, "/telegram/files/recent", nil, "fetch recent files")
	if err != nil {
		return nil, err
	}
	var files []map[string]any
	if raw, ok := env.Fields["files"]; ok && raw != nil {
		if err := mapstructure.Decode(raw, &files); err != nil {
			return nil, fmt.Errorf("fetch recent files: decode files: %w", err)
		}
	}
	SortNewestFirst(files)
	return files, nil
}

// SendMessage posts a text message to a chat through the backend proxy.
func (c *Client) SendMessage(ctx context.Context, chatID, message string) (Envelope, error) {
	body := map[string]string{"chatId": chatID, "message": message}
	return c.expect(ctx, http.MethodPost, "/proxy/telegram/send", body, "send message")
}

// UploadCost asks for the price of storing a received file permanently.
func (c *Client) UploadCost(ctx context.Context, fileID string) (Envelope, error) {
	return c.expect(ctx, http.MethodGet, "/telegram/ardrive/files/"+url.PathEscape(fileID)+"/cost", nil, "get upload cost")
}

// UploadFile stores a received file on Arweave through ArDrive.
func (c *Client) UploadFile(ctx context.Context, fileID string) (Envelope, error) {
	return c.expect(ctx, http.MethodPost, "/telegram/ardrive/files/"+url.PathEscape(fileID)+"/upload", nil, "upload file")
}

// expect performs a call and turns {"success": false} into an error.
func (c *Client) expect(ctx context.Context, method, path string, body any, op string) (Envelope, error) {
	env, err := c.do(ctx, method, path, body)
	if err != nil {
		return env, fmt.Errorf("%s: %w", op, err)
	}
	if !env.Success {
		return env, fmt.Errorf("%s: %w: %s", op, ErrUnsuccessful, env.Reason())
	}
	return env, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (Envelope, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return Envelope{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("backend request", "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return Envelope{}, err
	}
	defer resp.Body.Close()

	raw := make(map[string]any)
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Envelope{}, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}

	var env Envelope
	if err := mapstructure.Decode(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest && env.Success {
		env.Success = false
		if env.Error == "" {
			env.Error = resp.Status
		}
	}
	return env, nil
}

// FileID returns the identifier of a file record as a string.
func FileID(file map[string]any) string {
	switch id := file["id"].(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(id)
	}
}

// SortNewestFirst orders files by descending numeric id. Ids that are not
// numbers sort after numeric ones, in reverse lexical order.
func SortNewestFirst(files []map[string]any) {
	sort.SliceStable(files, func(i, j int) bool {
		a, b := FileID(files[i]), FileID(files[j])
		ai, aerr := strconv.ParseInt(a, 10, 64)
		bi, berr := strconv.ParseInt(b, 10, 64)
		switch {
		case aerr == nil && berr == nil:
			return ai > bi
		case aerr == nil:
			return true
		case berr == nil:
			return false
		}
		return a > b
	})
}
