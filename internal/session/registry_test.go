package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	sent   []any
	closed bool
}

func (f *fakeConn) Send(event any) { f.sent = append(f.sent, event) }
func (f *fakeConn) Close()         { f.closed = true }

func TestRegistry(t *testing.T) {
	t.Parallel()

	t.Run("register and get", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()
		c := &fakeConn{}
		displaced := r.Register(1, c)
		assert.Nil(t, displaced)
		assert.Same(t, c, r.Get(1))
		assert.Equal(t, 1, r.Len())
	})

	t.Run("last connection wins", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()
		old := &fakeConn{}
		r.Register(1, old)
		fresh := &fakeConn{}
		displaced := r.Register(1, fresh)
		assert.Same(t, old, displaced.(*fakeConn))
		assert.Same(t, fresh, r.Get(1))
		// No duplicate entries after reconnection.
		assert.Equal(t, 1, r.Len())
	})

	t.Run("unregister removes entry", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()
		c := &fakeConn{}
		r.Register(1, c)
		r.Unregister(1, c)
		assert.Nil(t, r.Get(1))
		assert.Equal(t, 0, r.Len())
	})

	t.Run("stale unregister leaves fresh entry alone", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()
		old := &fakeConn{}
		r.Register(1, old)
		fresh := &fakeConn{}
		r.Register(1, fresh)
		// The old connection's teardown must not evict the reconnect.
		r.Unregister(1, old)
		assert.Same(t, fresh, r.Get(1))
	})

	t.Run("lookup by user across users", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()
		a, b := &fakeConn{}, &fakeConn{}
		r.Register(1, a)
		r.Register(2, b)
		assert.Same(t, a, r.Get(1))
		assert.Same(t, b, r.Get(2))
		assert.Nil(t, r.Get(3))
	})
}
