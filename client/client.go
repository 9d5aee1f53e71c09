package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"taskboard/domain"
)

// DefaultBaseURL is the task resource of a locally running API.
const DefaultBaseURL = "http://localhost:3000/api/task"

// APIError is returned for non-2xx responses and carries the server's envelope.
type APIError struct {
	Status  int
	Message string
	Err     string
}

func (e *APIError) Error() string {
	if e.Err != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Client wraps http.Client with typed calls against the task resource.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a new Client for the given task resource URL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type envelope struct {
	Data    sonic.NoCopyRawMessage `json:"data,omitempty"`
	Message string                 `json:"message,omitempty"`
	Error   any                    `json:"error,omitempty"`
}

type createRequest struct {
	Title string `json:"title"`
	Point *int   `json:"point,omitempty"`
}

// List fetches every task.
func (c *Client) List(ctx context.Context) ([]domain.Task, error) {
	env, err := c.do(ctx, http.MethodGet, c.BaseURL, nil)
	if err != nil {
		return nil, err
	}
	tasks := []domain.Task{}
	if len(env.Data) > 0 {
		if err := sonic.Unmarshal(env.Data, &tasks); err != nil {
			return nil, fmt.Errorf("decode tasks: %w", err)
		}
	}
	return tasks, nil
}

// Create inserts a task and returns it together with the server message.
func (c *Client) Create(ctx context.Context, title string, point *int) (domain.Task, string, error) {
	env, err := c.do(ctx, http.MethodPost, c.BaseURL, createRequest{Title: title, Point: point})
	if err != nil {
		return domain.Task{}, "", err
	}
	t, err := decodeTask(env)
	return t, env.Message, err
}

// Update applies patch to the task with the given id.
func (c *Client) Update(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, string, error) {
	env, err := c.do(ctx, http.MethodPut, c.taskURL(id), patch)
	if err != nil {
		return domain.Task{}, "", err
	}
	t, err := decodeTask(env)
	return t, env.Message, err
}

// Delete removes the task with the given id.
func (c *Client) Delete(ctx context.Context, id string) (string, error) {
	env, err := c.do(ctx, http.MethodDelete, c.taskURL(id), nil)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (c *Client) taskURL(id string) string {
	return c.BaseURL + "/" + url.PathEscape(id)
}

func decodeTask(env envelope) (domain.Task, error) {
	var t domain.Task
	if len(env.Data) == 0 {
		return t, fmt.Errorf("response carried no task")
	}
	if err := sonic.Unmarshal(env.Data, &t); err != nil {
		return t, fmt.Errorf("decode task: %w", err)
	}
	if t.ID == "" {
		return t, fmt.Errorf("response carried no task")
	}
	return t, nil
}

func (c *Client) do(ctx context.Context, method, target string, body any) (envelope, error) {
	var rdr io.Reader
	if body != nil {
		buf, err := sonic.Marshal(body)
		if err != nil {
			return envelope{}, err
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return envelope{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return envelope{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, err
	}
	var env envelope
	decodeErr := sonic.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if decodeErr == nil {
			if env.Message != "" {
				apiErr.Message = env.Message
			}
			if env.Error != nil {
				apiErr.Err = fmt.Sprint(env.Error)
			}
		}
		return envelope{}, apiErr
	}
	if decodeErr != nil {
		return envelope{}, fmt.Errorf("unexpected response: %w", decodeErr)
	}
	return env, nil
}
