package sequence

import (
	"testing"

	"github.com/example/course-platform/services/player/internal/domain"
)

func lec(id string, order int) domain.Lecture {
	return domain.Lecture{ID: id, Order: order}
}

func ids(x *Index) []string {
	var out []string
	for i := 0; i < x.Len(); i++ {
		l, _ := x.At(i)
		out = append(out, l.ID)
	}
	return out
}

func TestNew_SortsSectionsThenLectures(t *testing.T) {
	x := New([]domain.Section{
		{ID: "s2", Order: 2, Lectures: []domain.Lecture{lec("l4", 2), lec("l3", 1)}},
		{ID: "s1", Order: 1, Lectures: []domain.Lecture{lec("l2", 2), lec("l1", 1)}},
	})

	got := ids(x)
	want := []string{"l1", "l2", "l3", "l4"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestNextPrevious(t *testing.T) {
	x := New([]domain.Section{
		{ID: "s1", Order: 1, Lectures: []domain.Lecture{lec("l1", 1), lec("l2", 2)}},
		{ID: "s2", Order: 2, Lectures: []domain.Lecture{lec("l3", 1)}},
	})

	if n, ok := x.Next("l2"); !ok || n.ID != "l3" {
		t.Fatalf("expected next of l2 to cross into s2, got %q ok=%v", n.ID, ok)
	}
	if _, ok := x.Next("l3"); ok {
		t.Fatal("expected no next after last lecture")
	}
	if p, ok := x.Previous("l3"); !ok || p.ID != "l2" {
		t.Fatalf("expected previous of l3 to be l2, got %q", p.ID)
	}
	if _, ok := x.Previous("l1"); ok {
		t.Fatal("expected no previous before first lecture")
	}
	if _, ok := x.Next("missing"); ok {
		t.Fatal("expected unknown lecture to have no next")
	}
}

func TestEmptyCourse(t *testing.T) {
	for name, sections := range map[string][]domain.Section{
		"no sections":       nil,
		"no lectures":       {{ID: "s1", Order: 1}},
		"empty lecture list": {{ID: "s1", Order: 1, Lectures: []domain.Lecture{}}},
	} {
		x := New(sections)
		if x.Len() != 0 {
			t.Fatalf("%s: expected empty index", name)
		}
		if _, ok := x.First(); ok {
			t.Fatalf("%s: expected no first lecture", name)
		}
		if _, ok := x.At(0); ok {
			t.Fatalf("%s: expected At(0) to miss", name)
		}
		if _, ok := x.IndexOf("l1"); ok {
			t.Fatalf("%s: expected IndexOf to miss", name)
		}
	}
}

func TestDuplicateIDs_FirstOccurrenceWins(t *testing.T) {
	first := lec("dup", 1)
	first.Title = "first"
	second := lec("dup", 1)
	second.Title = "second"

	x := New([]domain.Section{
		{ID: "s1", Order: 1, Lectures: []domain.Lecture{first, lec("l2", 2)}},
		{ID: "s2", Order: 2, Lectures: []domain.Lecture{second}},
	})

	if x.Len() != 2 {
		t.Fatalf("expected duplicate to be dropped, got %v", ids(x))
	}
	i, ok := x.IndexOf("dup")
	if !ok || i != 0 {
		t.Fatalf("expected dup at 0, got %d ok=%v", i, ok)
	}
	l, _ := x.At(i)
	if l.Title != "first" {
		t.Fatalf("expected first occurrence, got %q", l.Title)
	}
	if d := x.Duplicates(); len(d) != 1 || d[0] != "dup" {
		t.Fatalf("expected duplicates [dup], got %v", d)
	}
}

func TestNew_DoesNotMutateInput(t *testing.T) {
	sections := []domain.Section{
		{ID: "s2", Order: 2, Lectures: []domain.Lecture{lec("b", 2), lec("a", 1)}},
		{ID: "s1", Order: 1},
	}
	New(sections)
	if sections[0].ID != "s2" || sections[0].Lectures[0].ID != "b" {
		t.Fatal("expected caller's slices to keep their order")
	}
}
