// Package service composes the enrollment store with the outline cache,
// video URL signing and analytics.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/analytics"
	"github.com/example/course-platform/internal/platform/cache"
	"github.com/example/course-platform/internal/platform/signing"
	"github.com/example/course-platform/services/enrollment/internal/store"
)

// DefaultSignTTL is how long a signed video URL stays playable.
const DefaultSignTTL = 6 * time.Hour

type Service struct {
	store    store.Store
	outlines cache.Cache
	signer   *signing.Signer
	signTTL  time.Duration
	proxy    string
	pub      *analytics.Publisher
	log      *zap.Logger
}

type Option func(*Service)

// WithOutlineCache caches course outlines. Cache errors fall back to the store.
func WithOutlineCache(c cache.Cache) Option {
	return func(s *Service) { s.outlines = c }
}

// WithSigner replaces video locators with per-learner signed URLs.
func WithSigner(signer *signing.Signer, ttl time.Duration) Option {
	return func(s *Service) {
		s.signer = signer
		if ttl > 0 {
			s.signTTL = ttl
		}
	}
}

// WithVideoProxy routes signed video URLs through the video proxy at base
// instead of signing the origin URL in place. Requires WithSigner.
func WithVideoProxy(base string) Option {
	return func(s *Service) { s.proxy = base }
}

func WithPublisher(pub *analytics.Publisher) Option {
	return func(s *Service) { s.pub = pub }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func New(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, signTTL: DefaultSignTTL, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) List(ctx context.Context, userID string) ([]store.EnrollmentWithCourse, error) {
	list, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []store.EnrollmentWithCourse{}
	}
	return list, nil
}

// CourseDetail returns the enrollment's course outline with the learner's
// lecture progress attached.
func (s *Service) CourseDetail(ctx context.Context, enrollmentID, userID string) (store.CourseDetail, error) {
	e, err := s.store.Enrollment(ctx, enrollmentID, userID)
	if err != nil {
		return store.CourseDetail{}, err
	}
	outline, err := s.outline(ctx, e.CourseID)
	if err != nil {
		return store.CourseDetail{}, err
	}
	progress, err := s.store.Progress(ctx, e.ID)
	if err != nil {
		return store.CourseDetail{}, err
	}
	byLecture := make(map[string]store.LectureProgress, len(progress))
	for _, p := range progress {
		byLecture[p.LectureID] = p
	}

	// outline may be shared with the cache; copy before decorating
	detail := store.CourseDetail{Course: outline, Enrollment: e}
	detail.Sections = make([]store.Section, len(outline.Sections))
	for i, sec := range outline.Sections {
		lectures := make([]store.Lecture, len(sec.Lectures))
		for j, l := range sec.Lectures {
			if p, ok := byLecture[l.ID]; ok {
				l.Progress = &p
			}
			l.VideoURL = s.sign(l.VideoURL, userID)
			lectures[j] = l
		}
		sec.Lectures = lectures
		detail.Sections[i] = sec
	}
	return detail, nil
}

func (s *Service) outline(ctx context.Context, courseID string) (store.Course, error) {
	key := "outline:" + courseID
	if s.outlines != nil {
		var c store.Course
		hit, err := s.outlines.Get(ctx, key, &c)
		if err != nil {
			s.log.Warn("outline cache get failed", zap.String("course_id", courseID), zap.Error(err))
		} else if hit {
			return c, nil
		}
	}
	c, err := s.store.Outline(ctx, courseID)
	if err != nil {
		return store.Course{}, err
	}
	if s.outlines != nil {
		if err := s.outlines.Set(ctx, key, c); err != nil {
			s.log.Warn("outline cache set failed", zap.String("course_id", courseID), zap.Error(err))
		}
	}
	return c, nil
}

func (s *Service) sign(videoURL *string, userID string) *string {
	if videoURL == nil || s.signer == nil {
		return videoURL
	}
	var (
		signed string
		err    error
	)
	if s.proxy != "" {
		signed, err = s.signer.ProxyURL(s.proxy, *videoURL, userID, s.signTTL)
	} else {
		signed, err = s.signer.SignedURL(*videoURL, userID, s.signTTL)
	}
	if err != nil {
		s.log.Warn("video url not signable", zap.Error(err))
		return nil
	}
	return &signed
}

// UpdateProgress validates and stores one progress write.
func (s *Service) UpdateProgress(ctx context.Context, enrollmentID, userID string, u store.ProgressUpdate) (store.ProgressResult, error) {
	if err := u.Validate(); err != nil {
		return store.ProgressResult{}, err
	}
	res, err := s.store.UpdateProgress(ctx, enrollmentID, userID, u)
	if err != nil {
		return store.ProgressResult{}, err
	}
	s.pub.Publish(analytics.SubjectProgressSaved, "progress_saved", userID, map[string]any{
		"enrollment_id":     enrollmentID,
		"course_id":         res.Enrollment.CourseID,
		"lecture_id":        u.LectureID,
		"watch_time":        res.LectureProgress.WatchTime,
		"progress":          res.Enrollment.Progress,
		"lecture_completed": res.LectureCompleted,
		"course_completed":  res.CourseCompleted,
	})
	if res.LectureCompleted || res.CourseCompleted {
		s.log.Info("completion recorded",
			zap.String("enrollment_id", enrollmentID),
			zap.String("lecture_id", u.LectureID),
			zap.Bool("course_completed", res.CourseCompleted))
	}
	return res, nil
}
