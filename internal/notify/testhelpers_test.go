package notify

import (
	"bytes"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rakuyoMo/autocheck-anyrouter/internal/logging"
	"github.com/rakuyoMo/autocheck-anyrouter/internal/result"
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

// sampleRun has two successful accounts and one failure.
func sampleRun() result.RunResult {
	return result.New("2024-01-01 12:00:00", []result.AccountOutcome{
		result.Succeeded("acc-1", 25, 5, result.BalanceChanged),
		result.Succeeded("acc-2", 30, 10, result.BalanceUnchanged),
		result.Failed("acc-3", "timeout"),
	})
}
