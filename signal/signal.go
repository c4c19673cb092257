// Package signal implements a synchronous, ordered publish/subscribe primitive.
//
// Handlers are called on the goroutine calling Emit in the order they were
// connected. There is no error isolation: a panicking handler unwinds through
// the emitter and remaining handlers are not called.
package signal

import "errors"

// ErrReentrant is the panic value of Emit when a handler emits the
// signal it is currently handling.
var ErrReentrant = errors.New("signal: reentrant emit")

// Connection identifies a connected handler. The zero value is not connected.
type Connection struct {
	id     uint64
	remove func(uint64) bool
}

// Disconnect removes the handler from its signal. Calling it more than once is a no-op.
func (c Connection) Disconnect() {
	if c.remove != nil {
		c.remove(c.id)
	}
}

// Connected reports whether c was returned by Connect.
func (c Connection) Connected() bool { return c.id != 0 }

type handler[T any] struct {
	id uint64
	fn func(T)
}

// Signal is an ordered list of handlers receiving values of type T.
// The zero value is ready to use. A Signal is not safe for concurrent use.
type Signal[T any] struct {
	handlers []handler[T]
	nextID   uint64
	emitting bool
}

// Connect appends fn to the handler list and returns its connection handle.
func (s *Signal[T]) Connect(fn func(T)) Connection {
	if fn == nil {
		panic("signal: nil handler")
	}
	s.nextID++
	s.handlers = append(s.handlers, handler[T]{id: s.nextID, fn: fn})
	return Connection{id: s.nextID, remove: s.remove}
}

// Disconnect removes the handler identified by c.
// It reports whether a handler was removed.
func (s *Signal[T]) Disconnect(c Connection) bool {
	return s.remove(c.id)
}

func (s *Signal[T]) remove(id uint64) bool {
	for i, h := range s.handlers {
		if h.id == id {
			// Do not modify the backing array, a running Emit may be iterating it.
			handlers := make([]handler[T], 0, len(s.handlers)-1)
			handlers = append(handlers, s.handlers[:i]...)
			s.handlers = append(handlers, s.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// DisconnectAll removes every handler.
func (s *Signal[T]) DisconnectAll() {
	s.handlers = nil
}

// Len returns the number of connected handlers.
func (s *Signal[T]) Len() int { return len(s.handlers) }

// Emit calls every handler connected at the time of the call with v.
// Emitting from within one of the signal's own handlers panics with ErrReentrant.
func (s *Signal[T]) Emit(v T) {
	if err := s.EmitErr(v); err != nil {
		panic(err)
	}
}

// EmitErr is like Emit but returns ErrReentrant instead of panicking
// when called from within one of the signal's handlers.
func (s *Signal[T]) EmitErr(v T) error {
	if s.emitting {
		return ErrReentrant
	}
	s.emitting = true
	defer func() { s.emitting = false }()
	for _, h := range s.handlers {
		h.fn(v)
	}
	return nil
}
