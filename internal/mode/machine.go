package mode

import "sync"

// Machine holds the current mode and applies events through Next.
//
// Lock order: code that runs under the machine's lock (guards and InMode
// callbacks) may take other locks, never the reverse, and must not call
// back into the machine.
type Machine struct {
	mu        sync.RWMutex
	current   Mode
	listeners []func(from, to Mode)
}

// NewMachine creates a machine in the Loading state.
func NewMachine() *Machine {
	return &Machine{current: Loading}
}

// Current returns the active mode.
func (m *Machine) Current() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// OnChange registers fn to be called after every successful transition.
// Listeners run outside the lock, in registration order.
func (m *Machine) OnChange(fn func(from, to Mode)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Fire applies e and returns the resulting mode.
func (m *Machine) Fire(e Event) (Mode, error) {
	return m.FireGuarded(e, nil)
}

// FireGuarded applies e only if guard, evaluated under the machine lock,
// returns nil. A guard error is returned unchanged and leaves the mode as is.
func (m *Machine) FireGuarded(e Event, guard func(from, to Mode) error) (Mode, error) {
	m.mu.Lock()
	from := m.current
	to, err := Next(from, e)
	if err == nil && guard != nil {
		err = guard(from, to)
	}
	if err != nil {
		m.mu.Unlock()
		return from, err
	}
	m.current = to
	listeners := append([]func(from, to Mode){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(from, to)
	}
	return to, nil
}

// InMode runs fn while holding the mode steady. Transitions wait until fn
// returns, which lets mode-gated mutations complete atomically with their
// mode check.
func (m *Machine) InMode(fn func(current Mode) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.current)
}
