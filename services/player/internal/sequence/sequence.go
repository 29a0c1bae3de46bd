// Package sequence flattens a course's sections and lectures into the single
// playback order: sections by Order, then lectures within a section by Order.
package sequence

import (
	"sort"

	"github.com/example/course-platform/services/player/internal/domain"
)

// Index is immutable once built; a running session does not re-resolve
// order until the course is reloaded.
type Index struct {
	lectures   []domain.Lecture
	pos        map[string]int
	duplicates []string
}

func New(sections []domain.Section) *Index {
	ss := make([]domain.Section, len(sections))
	copy(ss, sections)
	sort.SliceStable(ss, func(i, j int) bool { return ss[i].Order < ss[j].Order })

	x := &Index{pos: make(map[string]int)}
	for _, s := range ss {
		ls := make([]domain.Lecture, len(s.Lectures))
		copy(ls, s.Lectures)
		sort.SliceStable(ls, func(i, j int) bool { return ls[i].Order < ls[j].Order })
		for _, l := range ls {
			if _, seen := x.pos[l.ID]; seen {
				// first occurrence wins
				x.duplicates = append(x.duplicates, l.ID)
				continue
			}
			x.pos[l.ID] = len(x.lectures)
			x.lectures = append(x.lectures, l)
		}
	}
	return x
}

func (x *Index) Len() int { return len(x.lectures) }

// Duplicates lists lecture ids seen more than once, in encounter order.
func (x *Index) Duplicates() []string { return x.duplicates }

func (x *Index) IndexOf(lectureID string) (int, bool) {
	i, ok := x.pos[lectureID]
	return i, ok
}

func (x *Index) At(i int) (domain.Lecture, bool) {
	if i < 0 || i >= len(x.lectures) {
		return domain.Lecture{}, false
	}
	return x.lectures[i], true
}

func (x *Index) First() (domain.Lecture, bool) { return x.At(0) }

func (x *Index) Next(lectureID string) (domain.Lecture, bool) {
	i, ok := x.pos[lectureID]
	if !ok {
		return domain.Lecture{}, false
	}
	return x.At(i + 1)
}

func (x *Index) Previous(lectureID string) (domain.Lecture, bool) {
	i, ok := x.pos[lectureID]
	if !ok {
		return domain.Lecture{}, false
	}
	return x.At(i - 1)
}
