package stream

import (
	"bytes"
	"errors"
	"strings"
	"sync"
)

// TestablePort implements Porter with configurable behaviour for
// testing. It captures writes and provides control over errors.
type TestablePort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls.
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port.
	WriteBuffer *bytes.Buffer

	// ReadError is returned by Read calls if set.
	ReadError error

	// WriteError is returned by Write calls if set.
	WriteError error

	// CloseError is returned by Close if set.
	CloseError error

	// Closed indicates whether Close was called.
	Closed bool

	// WriteCalls records the number of Write calls.
	WriteCalls int
}

// NewTestablePort creates a new TestablePort.
func NewTestablePort() *TestablePort {
	return &TestablePort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
}

// Read reads from the read buffer.
func (t *TestablePort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Closed {
		return 0, errors.New("port closed")
	}
	if t.ReadError != nil {
		return 0, t.ReadError
	}
	return t.ReadBuffer.Read(p)
}

// Write captures the written bytes.
func (t *TestablePort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.WriteCalls++
	if t.Closed {
		return 0, errors.New("port closed")
	}
	if t.WriteError != nil {
		return 0, t.WriteError
	}
	return t.WriteBuffer.Write(p)
}

// Close marks the port closed.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	return t.CloseError
}

// SetWriteError configures the error returned by subsequent writes.
func (t *TestablePort) SetWriteError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.WriteError = err
}

// Writes returns the number of Write calls so far.
func (t *TestablePort) Writes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.WriteCalls
}

// Lines returns the complete lines written so far.
func (t *TestablePort) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := strings.TrimSuffix(t.WriteBuffer.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}