package progressclient

// InFlight tracks which lectures have a progress write outstanding. It is
// owned by a single playback session and used only on that session's
// control loop, so it carries no lock.
type InFlight struct {
	busy map[string]struct{}
}

func NewInFlight() *InFlight {
	return &InFlight{busy: make(map[string]struct{})}
}

// TryAcquire marks lectureID busy. It reports false if a write for that
// lecture is already outstanding; the caller must then skip, not queue.
func (f *InFlight) TryAcquire(lectureID string) bool {
	if _, ok := f.busy[lectureID]; ok {
		return false
	}
	f.busy[lectureID] = struct{}{}
	return true
}

func (f *InFlight) Release(lectureID string) {
	delete(f.busy, lectureID)
}

func (f *InFlight) Busy(lectureID string) bool {
	_, ok := f.busy[lectureID]
	return ok
}
