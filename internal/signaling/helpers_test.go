package signaling

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recorder is a Sender that keeps every message it is given.
type recorder struct {
	mu     sync.Mutex
	msgs   []*Message
	refuse bool
}

func (r *recorder) Send(msg *Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refuse {
		return false
	}
	r.msgs = append(r.msgs, msg)
	return true
}

func (r *recorder) ofType(t string) []*Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Message
	for _, m := range r.msgs {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.msgs = nil
	r.mu.Unlock()
}

// closingRecorder is a recorder that also counts Close calls.
type closingRecorder struct {
	recorder
	closed int
}

func (c *closingRecorder) Close() {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decode[T any](t *testing.T, msg *Message) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Payload, &v))
	return v
}

// connect registers a recorder under a fresh id.
func connect(l *Lifecycle) (ConnID, *recorder) {
	id := NewConnID()
	r := &recorder{}
	l.Connect(id, r)
	return id, r
}

func newTestLifecycle() (*Lifecycle, *Registry, *Directory) {
	reg := NewRegistry()
	dir := NewDirectory()
	return NewLifecycle(reg, dir, discardLogger()), reg, dir
}
