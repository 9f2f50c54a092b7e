package audio

import "sync"

// Guard serializes ownership of an exclusive device class (microphone or
// speaker). A session acquires the guard before opening the device and
// releases it on every exit path, making ownership explicit and testable.
type Guard struct {
	name   string
	mu     sync.Mutex
	holder string
}

// NewGuard creates a guard for the named device class.
func NewGuard(name string) *Guard {
	return &Guard{name: name}
}

// Acquire claims the device for holder. Re-acquiring by the same holder is
// a no-op; a different holder gets ErrDeviceBusy.
func (g *Guard) Acquire(holder string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder != "" && g.holder != holder {
		return ErrDeviceBusy
	}
	g.holder = holder
	return nil
}

// Release frees the device if holder currently owns it. Releasing a guard
// held by someone else is ignored.
func (g *Guard) Release(holder string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder == holder {
		g.holder = ""
	}
}

// Holder reports who currently owns the device, empty when free.
func (g *Guard) Holder() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder
}

// Name returns the device class name.
func (g *Guard) Name() string {
	return g.name
}
