package checkin

import (
	"bytes"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rakuyoMo/autocheck-anyrouter/internal/logging"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// captureLogs redirects the global logger for the duration of the test.
func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	old := logging.Log
	logging.Log = zerolog.New(buf)
	t.Cleanup(func() { logging.Log = old })
	return buf
}
