package client

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
	"strconv"
	"time"

	"github.com/stratplan/companion/internal/config"
	"github.com/stratplan/companion/internal/model"
)

// ErrVersionConflict is matched by an APIError with status 409 from the
// moderation endpoint.
var ErrVersionConflict = errors.New("user record version conflict")

// APIError is a non-2xx response from the planning backend. Message carries
// the backend's error text verbatim when it sent one, and is what Error
// returns so it can be shown to the user unchanged.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error (status %d)", e.StatusCode)
	}
	return e.Message
}

// Is lets errors.Is(err, ErrVersionConflict) match conflict responses.
func (e *APIError) Is(target error) bool {
	return target == ErrVersionConflict && e.StatusCode == http.StatusConflict
}

type bearerKey struct{}

// WithBearer attaches the caller's token so upstream calls act on the
// user's behalf.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

// BearerToken returns the token attached by WithBearer, or "".
func BearerToken(ctx context.Context) string {
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}

// BackendClient talks to the upstream planning backend.
type BackendClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *slog.Logger
	now        func() time.Time
}

// NewBackendClient creates a new planning backend client
func NewBackendClient(cfg *config.BackendConfig, log *slog.Logger) *BackendClient {
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &BackendClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		log:     log.With("component", "backend"),
		now:     time.Now,
	}
}

// FetchPlanning loads a planning record. Responses are never served from a
// cache: the request carries no-store headers and a cache-busting query.
func (c *BackendClient) FetchPlanning(ctx context.Context, planningID string) (*model.Planning, error) {
	q := url.Values{}
	q.Set("_t", strconv.FormatInt(c.now().UnixMilli(), 10))
	endpoint := "/api/plannings/" + url.PathEscape(planningID) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Pragma", "no-cache")

	var planning model.Planning
	if err := c.doRequest(req, &planning); err != nil {
		return nil, err
	}
	if planning.ID == "" {
		planning.ID = planningID
	}
	return &planning, nil
}

// ApproveTasks submits the approved task selection.
func (c *BackendClient) ApproveTasks(ctx context.Context, planningID string, tasks []model.Task) error {
	body := model.ApproveTasksRequest{ApprovedTasks: tasks}
	endpoint := "/api/planning/" + url.PathEscape(planningID) + "/approve-tasks"
	return c.post(ctx, endpoint, body, nil)
}

// Moderate applies a moderation action. The request version must match the
// server's; a mismatch yields an error matching ErrVersionConflict.
func (c *BackendClient) Moderate(ctx context.Context, clerkID string, req *model.ModerateRequest) (*model.ModerateResponse, error) {
	endpoint := "/api/admin/users/" + url.PathEscape(clerkID) + "/moderate"

	var result model.ModerateResponse
	if err := c.post(ctx, endpoint, req, &result); err != nil {
		return nil, err
	}
	if result.ClerkID == "" {
		result.ClerkID = clerkID
	}
	return &result, nil
}

// post sends a POST request with JSON body
func (c *BackendClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response. A nil result
// discards the body of a successful response.
func (c *BackendClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := BearerToken(req.Context()); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.log.Debug("Backend request", "method", req.Method, "path", req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug("Backend response", "method", req.Method, "path", req.URL.Path,
		"status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody, resp.StatusCode),
		}
	}

	if result == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// errorMessage extracts {"error": "..."} from a failed response, falling
// back to the raw body or the status text.
func errorMessage(body []byte, status int) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}

	text := string(bytes.TrimSpace(body))
	if text == "" || text[0] == '{' || text[0] == '<' {
		return http.StatusText(status)
	}
	if len(text) > 512 {
		text = text[:512]
	}
	return text
}

// IsConfigured returns true if the client has valid configuration
func (c *BackendClient) IsConfigured() bool {
	return c.baseURL != ""
}
