package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the Postgres layout the store expects. Migrate applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS courses (
  id          TEXT PRIMARY KEY,
  slug        TEXT NOT NULL UNIQUE,
  title       TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS sections (
  id         TEXT PRIMARY KEY,
  course_id  TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  title      TEXT NOT NULL,
  sort_order INT  NOT NULL
);
CREATE TABLE IF NOT EXISTS lectures (
  id          TEXT PRIMARY KEY,
  section_id  TEXT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
  course_id   TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  title       TEXT NOT NULL,
  description TEXT,
  sort_order  INT  NOT NULL,
  duration    INT,
  video_url   TEXT,
  is_preview  BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS lectures_course_idx ON lectures (course_id);
CREATE TABLE IF NOT EXISTS enrollments (
  id               UUID PRIMARY KEY,
  user_id          TEXT NOT NULL,
  course_id        TEXT NOT NULL REFERENCES courses(id),
  enrolled_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  expires_at       TIMESTAMPTZ,
  last_accessed_at TIMESTAMPTZ,
  progress         INT NOT NULL DEFAULT 0,
  is_completed     BOOLEAN NOT NULL DEFAULT FALSE,
  completed_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS enrollments_user_idx ON enrollments (user_id, enrolled_at DESC);
CREATE TABLE IF NOT EXISTS lecture_progress (
  id            UUID PRIMARY KEY,
  enrollment_id UUID NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
  lecture_id    TEXT NOT NULL REFERENCES lectures(id) ON DELETE CASCADE,
  watch_time    INT  NOT NULL CHECK (watch_time >= 0),
  is_completed  BOOLEAN NOT NULL DEFAULT FALSE,
  completed_at  TIMESTAMPTZ,
  updated_at    TIMESTAMPTZ NOT NULL,
  UNIQUE (enrollment_id, lecture_id)
);
`

// Postgres is the production Store.
type Postgres struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const enrollmentColumns = `e.id::text, e.user_id, e.course_id, e.enrolled_at, e.expires_at, e.last_accessed_at, e.progress, e.is_completed, e.completed_at`

func scanEnrollment(row pgx.Row, extra ...any) (Enrollment, error) {
	var e Enrollment
	dest := append([]any{&e.ID, &e.UserID, &e.CourseID, &e.EnrolledAt, &e.ExpiresAt, &e.LastAccessedAt, &e.Progress, &e.IsCompleted, &e.CompletedAt}, extra...)
	err := row.Scan(dest...)
	return e, err
}

func (p *Postgres) ListByUser(ctx context.Context, userID string) ([]EnrollmentWithCourse, error) {
	q := `SELECT ` + enrollmentColumns + `, c.slug, c.title
	      FROM enrollments e JOIN courses c ON c.id = e.course_id
	      WHERE e.user_id = $1
	      ORDER BY e.enrolled_at DESC`
	rows, err := p.db.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var out []EnrollmentWithCourse
	for rows.Next() {
		var c CourseSummary
		e, err := scanEnrollment(rows, &c.Slug, &c.Title)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		c.ID = e.CourseID
		out = append(out, EnrollmentWithCourse{Enrollment: e, Course: c})
	}
	return out, rows.Err()
}

func (p *Postgres) Enrollment(ctx context.Context, enrollmentID, userID string) (Enrollment, error) {
	return p.owned(ctx, p.db, enrollmentID, userID, "")
}

// owned loads an enrollment and checks it against userID. lock is appended
// to the query, e.g. "FOR UPDATE".
func (p *Postgres) owned(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, enrollmentID, userID, lock string) (Enrollment, error) {
	if _, err := uuid.Parse(enrollmentID); err != nil {
		return Enrollment{}, ErrNotFound
	}
	e, err := scanEnrollment(q.QueryRow(ctx, `SELECT `+enrollmentColumns+` FROM enrollments e WHERE e.id = $1 `+lock, enrollmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Enrollment{}, ErrNotFound
	}
	if err != nil {
		return Enrollment{}, fmt.Errorf("load enrollment: %w", err)
	}
	if e.UserID != userID || e.Expired(p.now()) {
		return Enrollment{}, ErrForbidden
	}
	return e, nil
}

func (p *Postgres) Outline(ctx context.Context, courseID string) (Course, error) {
	var c Course
	err := p.db.QueryRow(ctx, `SELECT id, slug, title, description FROM courses WHERE id = $1`, courseID).
		Scan(&c.ID, &c.Slug, &c.Title, &c.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return Course{}, ErrNotFound
	}
	if err != nil {
		return Course{}, fmt.Errorf("load course: %w", err)
	}

	rows, err := p.db.Query(ctx, `
SELECT s.id, s.title, s.sort_order,
       l.id, l.title, l.description, l.sort_order, l.duration, l.video_url, l.is_preview
FROM sections s
LEFT JOIN lectures l ON l.section_id = s.id
WHERE s.course_id = $1
ORDER BY s.sort_order, s.id, l.sort_order, l.id`, courseID)
	if err != nil {
		return Course{}, fmt.Errorf("load outline: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s           Section
			lid, ltitle *string
			ldesc, lurl *string
			lorder      *int
			lduration   *int
			lpreview    *bool
		)
		if err := rows.Scan(&s.ID, &s.Title, &s.Order, &lid, &ltitle, &ldesc, &lorder, &lduration, &lurl, &lpreview); err != nil {
			return Course{}, fmt.Errorf("scan outline: %w", err)
		}
		if n := len(c.Sections); n == 0 || c.Sections[n-1].ID != s.ID {
			c.Sections = append(c.Sections, s)
		}
		if lid == nil {
			continue
		}
		l := Lecture{ID: *lid, Description: ldesc, Duration: lduration, VideoURL: lurl, SectionID: s.ID}
		if ltitle != nil {
			l.Title = *ltitle
		}
		if lorder != nil {
			l.Order = *lorder
		}
		if lpreview != nil {
			l.IsPreview = *lpreview
		}
		last := &c.Sections[len(c.Sections)-1]
		last.Lectures = append(last.Lectures, l)
	}
	return c, rows.Err()
}

func (p *Postgres) Progress(ctx context.Context, enrollmentID string) ([]LectureProgress, error) {
	rows, err := p.db.Query(ctx, `
SELECT id::text, enrollment_id::text, lecture_id, watch_time, is_completed, completed_at
FROM lecture_progress WHERE enrollment_id = $1
ORDER BY lecture_id`, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	defer rows.Close()
	var out []LectureProgress
	for rows.Next() {
		var lp LectureProgress
		if err := rows.Scan(&lp.ID, &lp.EnrollmentID, &lp.LectureID, &lp.WatchTime, &lp.IsCompleted, &lp.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out = append(out, lp)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateProgress(ctx context.Context, enrollmentID, userID string, u ProgressUpdate) (ProgressResult, error) {
	if err := u.Validate(); err != nil {
		return ProgressResult{}, err
	}
	var res ProgressResult
	err := pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		// Row lock serialises concurrent writes to one enrollment so the
		// aggregate is computed over a consistent set of rows.
		e, err := p.owned(ctx, tx, enrollmentID, userID, "FOR UPDATE")
		if err != nil {
			return err
		}
		var inCourse bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lectures WHERE id = $1 AND course_id = $2)`, u.LectureID, e.CourseID).Scan(&inCourse); err != nil {
			return fmt.Errorf("check lecture: %w", err)
		}
		if !inCourse {
			return ErrLectureNotFound
		}

		now := p.now().UTC()
		var wasDone bool
		err = tx.QueryRow(ctx, `SELECT is_completed FROM lecture_progress WHERE enrollment_id = $1 AND lecture_id = $2`, enrollmentID, u.LectureID).Scan(&wasDone)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("load lecture progress: %w", err)
		}

		lp := LectureProgress{EnrollmentID: enrollmentID, LectureID: u.LectureID}
		err = tx.QueryRow(ctx, `
INSERT INTO lecture_progress (id, enrollment_id, lecture_id, watch_time, is_completed, completed_at, updated_at)
VALUES ($1, $2, $3, $4, $5, CASE WHEN $5::boolean THEN $6::timestamptz END, $6)
ON CONFLICT (enrollment_id, lecture_id)
DO UPDATE SET
  watch_time   = EXCLUDED.watch_time,
  is_completed = lecture_progress.is_completed OR EXCLUDED.is_completed,
  completed_at = COALESCE(lecture_progress.completed_at, EXCLUDED.completed_at),
  updated_at   = EXCLUDED.updated_at
RETURNING id::text, watch_time, is_completed, completed_at`,
			uuid.New(), enrollmentID, u.LectureID, u.WatchTime, u.IsCompleted, now,
		).Scan(&lp.ID, &lp.WatchTime, &lp.IsCompleted, &lp.CompletedAt)
		if err != nil {
			return fmt.Errorf("upsert progress: %w", err)
		}

		var total, completed int
		err = tx.QueryRow(ctx, `
SELECT (SELECT count(*) FROM lectures WHERE course_id = $1),
       (SELECT count(*) FROM lecture_progress lp JOIN lectures l ON l.id = lp.lecture_id
        WHERE lp.enrollment_id = $2 AND lp.is_completed AND l.course_id = $1)`,
			e.CourseID, enrollmentID).Scan(&total, &completed)
		if err != nil {
			return fmt.Errorf("count progress: %w", err)
		}

		courseDone := applyAggregate(&e, completed, total, now)
		_, err = tx.Exec(ctx, `
UPDATE enrollments
SET progress = $2, is_completed = $3, completed_at = $4, last_accessed_at = $5
WHERE id = $1`, enrollmentID, e.Progress, e.IsCompleted, e.CompletedAt, e.LastAccessedAt)
		if err != nil {
			return fmt.Errorf("update enrollment: %w", err)
		}

		res = ProgressResult{
			LectureProgress:  lp,
			Enrollment:       e,
			LectureCompleted: lp.IsCompleted && !wasDone,
			CourseCompleted:  courseDone,
		}
		return nil
	})
	if err != nil {
		return ProgressResult{}, err
	}
	return res, nil
}
