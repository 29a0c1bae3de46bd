// Package progressclient talks to the enrollment service: it loads an
// enrolled course with per-lecture progress and writes lecture progress.
// It never retries; callers re-attempt on their next natural trigger.
package progressclient

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

	"github.com/sony/gobreaker"

	"github.com/example/course-platform/services/player/internal/domain"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 30 * time.Second

const maxResponseBytes = 4 << 20

type Client struct {
	baseURL string
	http    *http.Client
	token   string
	cb      *gobreaker.CircuitBreaker
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithBearer returns a copy of c that authenticates as another learner and
// shares the underlying http.Client.
func (c *Client) WithBearer(token string) *Client {
	cp := *c
	cp.token = strings.TrimSpace(token)
	return &cp
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ListEnrollments returns the caller's enrollments.
func (c *Client) ListEnrollments(ctx context.Context) ([]domain.EnrollmentSummary, error) {
	var out []domain.EnrollmentSummary
	if err := c.do(ctx, http.MethodGet, "/v1/enrollments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadCourse fetches the enrolled course detail with per-lecture progress.
func (c *Client) LoadCourse(ctx context.Context, enrollmentID string) (domain.CourseDetail, error) {
	var out domain.CourseDetail
	path := "/v1/enrollments/" + url.PathEscape(enrollmentID) + "/course"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return domain.CourseDetail{}, err
	}
	return out, nil
}

// SaveProgress writes one lecture's watch time and completion flag.
func (c *Client) SaveProgress(ctx context.Context, enrollmentID string, u domain.ProgressUpdate) (domain.ProgressResult, error) {
	if strings.TrimSpace(u.LectureID) == "" || u.WatchTime < 0 {
		return domain.ProgressResult{}, fmt.Errorf("%w: lectureId required and watchTime must be >= 0", ErrValidation)
	}
	var out domain.ProgressResult
	path := "/v1/enrollments/" + url.PathEscape(enrollmentID) + "/progress"
	if err := c.do(ctx, http.MethodPost, path, u, &out); err != nil {
		return domain.ProgressResult{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	if c.cb == nil {
		return c.roundTrip(ctx, method, path, body, dst)
	}
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, body, dst)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, dst any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (decodeErr == nil && !env.Success) {
		apiErr := &APIError{Status: resp.StatusCode, Code: "SERVER_001", Message: http.StatusText(resp.StatusCode)}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: decode envelope: %v", ErrNetwork, decodeErr)
	}
	if dst == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("%w: decode data: %v", ErrNetwork, err)
	}
	return nil
}
