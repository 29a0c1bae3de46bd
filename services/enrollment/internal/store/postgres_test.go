package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/example/course-platform/internal/platform/db"
)

// newPostgres connects to ENROLLMENT_TEST_DATABASE_URL, applies the schema
// and seeds one course with a fresh enrollment.
func newPostgres(t *testing.T) (*Postgres, string) {
	t.Helper()
	dsn := os.Getenv("ENROLLMENT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ENROLLMENT_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.OpenDSN(ctx, dsn, db.PoolOptions{MaxConns: 4})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	p := NewPostgres(pool)
	if err := p.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	suffix := uuid.NewString()[:8]
	course := "c-" + suffix
	stmts := []string{
		`INSERT INTO courses (id, slug, title) VALUES ('` + course + `', '` + course + `', 'Test course')`,
		`INSERT INTO sections (id, course_id, title, sort_order) VALUES ('s1-` + suffix + `', '` + course + `', 'One', 1)`,
		`INSERT INTO lectures (id, section_id, course_id, title, sort_order, duration) VALUES ('l1-` + suffix + `', 's1-` + suffix + `', '` + course + `', 'A', 1, 600)`,
		`INSERT INTO lectures (id, section_id, course_id, title, sort_order, duration) VALUES ('l2-` + suffix + `', 's1-` + suffix + `', '` + course + `', 'B', 2, 300)`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	enrollment := uuid.NewString()
	if _, err := pool.Exec(ctx, `INSERT INTO enrollments (id, user_id, course_id) VALUES ($1, 'u1', $2)`, enrollment, course); err != nil {
		t.Fatal(err)
	}
	return p, enrollment
}

func TestPostgres_ProgressLifecycle(t *testing.T) {
	p, enrollment := newPostgres(t)
	ctx := context.Background()

	e, err := p.Enrollment(ctx, enrollment, "u1")
	if err != nil {
		t.Fatal(err)
	}
	c, err := p.Outline(ctx, e.CourseID)
	if err != nil {
		t.Fatal(err)
	}
	if c.LectureCount() != 2 {
		t.Fatalf("expected 2 lectures, got %+v", c)
	}
	l1, l2 := c.Sections[0].Lectures[0].ID, c.Sections[0].Lectures[1].ID

	res, err := p.UpdateProgress(ctx, enrollment, "u1", ProgressUpdate{LectureID: l1, WatchTime: 600, IsCompleted: true})
	if err != nil {
		t.Fatal(err)
	}
	if !res.LectureCompleted || res.Enrollment.Progress != 50 {
		t.Fatalf("unexpected result %+v", res)
	}

	res, err = p.UpdateProgress(ctx, enrollment, "u1", ProgressUpdate{LectureID: l1, WatchTime: 12})
	if err != nil {
		t.Fatal(err)
	}
	if !res.LectureProgress.IsCompleted || res.LectureProgress.WatchTime != 12 || res.LectureCompleted {
		t.Fatalf("expected sticky completion with new watch time, got %+v", res)
	}

	res, err = p.UpdateProgress(ctx, enrollment, "u1", ProgressUpdate{LectureID: l2, WatchTime: 300, IsCompleted: true})
	if err != nil {
		t.Fatal(err)
	}
	if !res.CourseCompleted || res.Enrollment.Progress != 100 || res.Enrollment.CompletedAt == nil {
		t.Fatalf("expected course completion, got %+v", res)
	}

	progress, err := p.Progress(ctx, enrollment)
	if err != nil || len(progress) != 2 {
		t.Fatalf("expected 2 progress rows, got %v %v", progress, err)
	}

	if _, err := p.UpdateProgress(ctx, enrollment, "u2", ProgressUpdate{LectureID: l1}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := p.UpdateProgress(ctx, enrollment, "u1", ProgressUpdate{LectureID: "missing"}); !errors.Is(err, ErrLectureNotFound) {
		t.Fatalf("expected ErrLectureNotFound, got %v", err)
	}
	if _, err := p.Enrollment(ctx, "not-a-uuid", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	list, err := p.ListByUser(ctx, "u1")
	if err != nil || len(list) == 0 {
		t.Fatalf("expected enrollments for u1, got %v %v", list, err)
	}
}
