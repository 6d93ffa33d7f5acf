package thorlabs

import (
	"sync"
)

// MockMount is an in-memory stand-in for a KBD101 and its stage.  Moves
// complete instantly.
type MockMount struct {
	sync.Mutex
	homed bool
	angle float64
	moves []float64
}

// NewMockMount returns a MockMount at angle zero, not yet homed
func NewMockMount() *MockMount {
	return &MockMount{}
}

// Initialize homes the mock immediately
func (m *MockMount) Initialize() error {
	m.Lock()
	defer m.Unlock()
	m.homed = true
	return nil
}

// SetAngle records the commanded angle
func (m *MockMount) SetAngle(deg float64) error {
	m.Lock()
	defer m.Unlock()
	m.angle = deg
	m.moves = append(m.moves, deg)
	return nil
}

// Angle returns the last commanded angle
func (m *MockMount) Angle() float64 {
	m.Lock()
	defer m.Unlock()
	return m.angle
}

// Moves returns every angle commanded so far
func (m *MockMount) Moves() []float64 {
	m.Lock()
	defer m.Unlock()
	out := make([]float64, len(m.moves))
	copy(out, m.moves)
	return out
}

// Homed returns whether Initialize has run
func (m *MockMount) Homed() bool {
	m.Lock()
	defer m.Unlock()
	return m.homed
}

// Close satisfies the owned-device interface; the mock holds no resources
func (m *MockMount) Close() error {
	return nil
}
