package progressclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/course-platform/services/player/internal/domain"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, WithToken("tok-1"))
}

func writeData(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": v})
}

func writeErr(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": "nope"},
	})
}

func TestLoadCourse_OK(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/enrollments/e1/course" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		writeData(w, http.StatusOK, map[string]any{
			"id":    "c1",
			"title": "Go",
			"sections": []any{map[string]any{
				"id": "s1", "order": 1,
				"lectures": []any{map[string]any{
					"id": "l1", "order": 1, "duration": 600,
					"progress": map[string]any{"watchTime": 245, "isCompleted": false},
				}},
			}},
			"enrollment": map[string]any{"id": "e1", "progress": 40},
		})
	})

	cd, err := c.LoadCourse(context.Background(), "e1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cd.Enrollment.Progress != 40 || len(cd.Sections) != 1 {
		t.Fatalf("unexpected course: %+v", cd)
	}
	l := cd.Sections[0].Lectures[0]
	if l.SavedWatchTime() != 245 || l.DurationSeconds() != 600 {
		t.Fatalf("unexpected lecture: %+v", l)
	}
}

func TestLoadCourse_ErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		code   string
		want   error
	}{
		{http.StatusNotFound, "RESOURCE_001", ErrNotFound},
		{http.StatusUnauthorized, "AUTH_001", ErrUnauthorized},
		{http.StatusForbidden, "PERMISSION_001", ErrUnauthorized},
		{http.StatusBadRequest, "VALIDATION_001", ErrValidation},
		{http.StatusInternalServerError, "SERVER_001", ErrNetwork},
	}
	for _, tc := range cases {
		c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
			writeErr(w, tc.status, tc.code)
		})
		_, err := c.LoadCourse(context.Background(), "e1")
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != tc.code {
			t.Fatalf("status %d: expected APIError with code %s, got %v", tc.status, tc.code, err)
		}
	}
}

func TestLoadCourse_NonJSONError(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})
	_, err := c.LoadCourse(context.Background(), "e1")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestSaveProgress_OK(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/enrollments/e1/progress" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body domain.ProgressUpdate
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.LectureID != "l1" || body.WatchTime != 600 || !body.IsCompleted {
			t.Errorf("unexpected body %+v", body)
		}
		writeData(w, http.StatusOK, map[string]any{
			"lectureProgress": map[string]any{"lectureId": "l1", "watchTime": 600, "isCompleted": true},
			"enrollment":      map[string]any{"id": "e1", "progress": 50},
		})
	})

	res, err := c.SaveProgress(context.Background(), "e1", domain.ProgressUpdate{LectureID: "l1", WatchTime: 600, IsCompleted: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Enrollment.Progress != 50 || !res.LectureProgress.IsCompleted {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSaveProgress_RejectsNegativeWatchTime(t *testing.T) {
	c := New("http://127.0.0.1:1")
	_, err := c.SaveProgress(context.Background(), "e1", domain.ProgressUpdate{LectureID: "l1", WatchTime: -1})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSaveProgress_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url, WithHTTPClient(&http.Client{Timeout: time.Second}))
	_, err := c.SaveProgress(context.Background(), "e1", domain.ProgressUpdate{LectureID: "l1", WatchTime: 10})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestWithBearer_CopiesClient(t *testing.T) {
	var got string
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		writeData(w, http.StatusOK, []any{})
	})
	other := c.WithBearer("tok-2")
	if _, err := other.ListEnrollments(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Bearer tok-2" {
		t.Fatalf("expected forwarded token, got %q", got)
	}
	if c.token != "tok-1" {
		t.Fatal("expected original client to keep its token")
	}
}

func TestInFlight(t *testing.T) {
	f := NewInFlight()
	if !f.TryAcquire("l1") {
		t.Fatal("expected first acquire to succeed")
	}
	if f.TryAcquire("l1") {
		t.Fatal("expected second acquire for same lecture to fail")
	}
	if !f.TryAcquire("l2") {
		t.Fatal("expected other lecture to be independent")
	}
	f.Release("l1")
	if f.Busy("l1") || !f.Busy("l2") {
		t.Fatal("unexpected busy state after release")
	}
}

func TestCircuitBreaker_OpensOnServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		writeErr(w, http.StatusBadGateway, "SERVER_002")
	}))
	t.Cleanup(srv.Close)

	cb := NewBreaker(BreakerSettings{Failures: 2, Cooldown: time.Hour})
	c := New(srv.URL, WithCircuitBreaker(cb))
	u := domain.ProgressUpdate{LectureID: "l1", WatchTime: 10}
	for i := 0; i < 3; i++ {
		if _, err := c.SaveProgress(context.Background(), "e1", u); !errors.Is(err, ErrNetwork) {
			t.Fatalf("call %d: expected ErrNetwork, got %v", i, err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected the open breaker to skip the third request, got %d calls", calls)
	}
}

func TestCircuitBreaker_IgnoresClientErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		writeErr(w, http.StatusNotFound, "RESOURCE_001")
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, WithCircuitBreaker(NewBreaker(BreakerSettings{Failures: 1, Cooldown: time.Hour})))
	for i := 0; i < 3; i++ {
		if _, err := c.LoadCourse(context.Background(), "e1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("call %d: expected ErrNotFound, got %v", i, err)
		}
	}
	if calls != 3 {
		t.Fatalf("expected every request to reach the server, got %d", calls)
	}
}
