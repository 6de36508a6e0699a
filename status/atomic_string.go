package status

import (
	"sync/atomic"
)

// MaxStringLen caps stored string metrics so display columns stay fixed
const MaxStringLen = 32

// AtomicString is an atomic string with a fixed maximum length.
// The zero value is ready to use and reads as the empty string.
type AtomicString struct {
	ptr atomic.Pointer[string]
}

// Store sets the value, truncating to MaxStringLen
func (s *AtomicString) Store(val string) {
	if len(val) > MaxStringLen {
		val = val[:MaxStringLen]
	}
	s.ptr.Store(&val)
}

// Load returns the current value
func (s *AtomicString) Load() string {
	if p := s.ptr.Load(); p != nil {
		return *p
	}
	return ""
}
