package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnexpectedSyncResponse reports a remote service that answered a
// declaration post synchronously when the protocol contract requires an
// asynchronous 202.
var ErrUnexpectedSyncResponse = errors.New("remote service responded synchronously to an async declaration post")

// RemoteError wraps a failed remote request with enough context to
// report it on a task: method, resource, status, and the decoded body.
type RemoteError struct {
	Method     string
	Resource   string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.Resource, e.StatusCode, e.Body)
}

// ClientConfig configures the remote declarative-config endpoint
type ClientConfig struct {
	// Endpoint is the service base URL, e.g. http://host:8100/mgmt/shared/appsvcs
	Endpoint string
	// Username/Password enable basic auth when set
	Username string
	Password string
	// HTTPClient overrides the default client (tests, custom transports)
	HTTPClient *http.Client
}

// Client speaks the remote service's wire protocol. The path and query
// shapes are fixed for compatibility: GET /declare[?showHash=true],
// POST /declare[/<tenant-list>]?async=true, GET /task.
type Client struct {
	endpoint string
	username string
	password string
	hc       *http.Client
}

// NewClient creates a remote endpoint client
func NewClient(cfg ClientConfig) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		username: cfg.Username,
		password: cfg.Password,
		hc:       hc,
	}
}

// GetDeclaration reads the current remote declaration. showHash requests
// an integrity hash for optimistic-lock conflict detection. An empty
// response body yields a nil map.
func (c *Client) GetDeclaration(ctx context.Context, showHash bool) (map[string]interface{}, error) {
	resource := "/declare"
	if showHash {
		resource += "?showHash=true"
	}

	body, _, err := c.do(ctx, http.MethodGet, resource, nil)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var decl map[string]interface{}
	if err := json.Unmarshal(body, &decl); err != nil {
		return nil, fmt.Errorf("failed to decode declaration: %w", err)
	}
	return decl, nil
}

// PostDeclaration submits a declaration asynchronously, optionally
// scoped to a tenant list, and returns the server-assigned task id. A
// synchronous 200 violates the protocol contract and is an error.
func (c *Client) PostDeclaration(ctx context.Context, decl map[string]interface{}, tenants []string) (string, error) {
	resource := "/declare"
	if len(tenants) > 0 {
		resource += "/" + url.PathEscape(strings.Join(tenants, ","))
	}
	resource += "?async=true"

	payload, err := json.Marshal(decl)
	if err != nil {
		return "", fmt.Errorf("failed to encode declaration: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodPost, resource, payload)
	if err != nil {
		return "", err
	}
	if status == http.StatusOK {
		return "", ErrUnexpectedSyncResponse
	}

	var response struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to decode declaration post response: %w", err)
	}
	return response.ID, nil
}

// GetTasks lists the remote task records
func (c *Client) GetTasks(ctx context.Context) ([]map[string]interface{}, error) {
	body, _, err := c.do(ctx, http.MethodGet, "/task", nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Items []map[string]interface{} `json:"items"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode task list: %w", err)
	}
	return response.Items, nil
}

func (c *Client) do(ctx context.Context, method, resource string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+resource, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build %s %s request: %w", method, resource, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, resource, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s %s: failed to read response: %w", method, resource, err)
	}

	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, &RemoteError{
			Method:     method,
			Resource:   resource,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return body, resp.StatusCode, nil
}
