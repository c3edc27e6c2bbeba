package gateway

import "sync"

// Flag is a reference counted activity indicator. It is active while at least
// one holder has not released it.
type Flag struct {
	mu      sync.Mutex
	holders int
}

// Acquire marks the flag active and returns the release function. Calling the
// release function more than once has no further effect.
func (f *Flag) Acquire() func() {
	f.mu.Lock()
	f.holders++
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.holders--
			f.mu.Unlock()
		})
	}
}

// Active reports whether any holder is outstanding.
func (f *Flag) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holders > 0
}

// Activity exposes the two progress indicators the UI observes: Blocking for
// operations that lock out input and Loading for background reads.
type Activity struct {
	Blocking Flag
	Loading  Flag
}

func (a *Activity) acquire(blocking bool) func() {
	if a == nil {
		return func() {}
	}
	if blocking {
		return a.Blocking.Acquire()
	}
	return a.Loading.Acquire()
}
