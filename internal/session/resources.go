package session

import "sync"

// clipBuffer stages one inbound audio clip in memory. It is owned by the run
// that processes it and must be released exactly once; Release is idempotent
// so run completion and session teardown can both safely call it.
type clipBuffer struct {
	Data []byte

	set  *resourceSet
	id   uint64
	once sync.Once
}

// Release returns the buffer to the session's resource set. Safe to call more
// than once and from multiple goroutines; only the first call takes effect.
func (b *clipBuffer) Release() {
	b.once.Do(func() {
		b.set.remove(b.id)
		b.Data = nil
	})
}

// resourceSet tracks the temporary buffers owned by a session's in-flight and
// queued runs, so teardown can release whatever is still held.
type resourceSet struct {
	mu   sync.Mutex
	next uint64
	held map[uint64]*clipBuffer
}

func newResourceSet() *resourceSet {
	return &resourceSet{held: make(map[uint64]*clipBuffer)}
}

// Hold registers a clip and returns its owning buffer.
func (rs *resourceSet) Hold(data []byte) *clipBuffer {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.next++
	b := &clipBuffer{Data: data, set: rs, id: rs.next}
	rs.held[b.id] = b
	return b
}

func (rs *resourceSet) remove(id uint64) {
	rs.mu.Lock()
	delete(rs.held, id)
	rs.mu.Unlock()
}

// ReleaseAll releases every still-held buffer. Called at session teardown.
func (rs *resourceSet) ReleaseAll() {
	rs.mu.Lock()
	bufs := make([]*clipBuffer, 0, len(rs.held))
	for _, b := range rs.held {
		bufs = append(bufs, b)
	}
	rs.mu.Unlock()

	for _, b := range bufs {
		b.Release()
	}
}

// Len reports how many buffers are currently held.
func (rs *resourceSet) Len() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.held)
}
