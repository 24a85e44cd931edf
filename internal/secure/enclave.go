package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when a destroyed buffer is used.
var ErrDestroyed = errors.New("secure buffer destroyed")

// SecureBuffer stores sensitive bytes encrypted at rest in memory.
//
// memguard.Enclave has no Destroy method; dropping the enclave reference is
// enough because the ciphertext is useless without the session key, which
// memguard.Purge wipes.
type SecureBuffer struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	empty     bool
	destroyed bool
}

// NewSecureBuffer seals data into a new enclave. memguard wipes data after
// copying it, so callers must not reuse the slice.
func NewSecureBuffer(data []byte) (*SecureBuffer, error) {
	if len(data) == 0 {
		// memguard refuses to build a zero-length enclave
		return &SecureBuffer{empty: true}, nil
	}

	enclave := memguard.NewEnclave(data)
	if enclave == nil {
		return nil, errors.New("failed to create memory enclave")
	}

	return &SecureBuffer{enclave: enclave}, nil
}

// FromString seals a copy of s.
func FromString(s string) *SecureBuffer {
	buf, err := NewSecureBuffer([]byte(s))
	if err != nil {
		// only reachable when memguard cannot allocate; fail closed
		return &SecureBuffer{destroyed: true}
	}
	return buf
}

// Open decrypts the enclave into a locked buffer. The caller must Destroy
// the returned buffer.
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return nil, ErrDestroyed
	}
	if s.empty {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}

	return s.enclave.Open()
}

// Use opens the buffer, passes the plaintext to fn and destroys the locked
// buffer once fn returns. fn receives a heap copy because the locked memory
// is unmapped on destroy.
func (s *SecureBuffer) Use(fn func(secret string) error) error {
	locked, err := s.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(string(locked.Bytes()))
}

// Empty reports whether the buffer was created from zero bytes.
func (s *SecureBuffer) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.empty
}

// Destroy drops the enclave. Subsequent Open calls return ErrDestroyed.
// Destroy is idempotent.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	s.enclave = nil
	s.destroyed = true
}

// String never reveals the contents.
func (s *SecureBuffer) String() string {
	return "[REDACTED]"
}
