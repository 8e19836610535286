package server

import (
	"net"
	"sync"
)

// connQueue is an unbounded FIFO of connections feeding one worker.
// Pushing never blocks: under sustained overload the queue grows
// without bound. That is the documented dispatch contract, not an
// oversight; bounding it here would introduce backpressure the rest
// of the design does not expect.
type connQueue struct {
	mu     sync.Mutex
	ready  *sync.Cond
	items  []net.Conn
	closed bool
}

func newConnQueue() *connQueue {
	q := &connQueue{}
	q.ready = sync.NewCond(&q.mu)
	return q
}

// push appends a connection. Pushing to a closed queue closes the
// connection instead, so nothing leaks during shutdown.
func (q *connQueue) push(conn net.Conn) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		conn.Close()
		return
	}
	q.items = append(q.items, conn)
	q.mu.Unlock()
	q.ready.Signal()
}

// pop blocks until a connection is available or the queue is closed
// and drained. The second return value is false only in the latter
// case.
func (q *connQueue) pop() (net.Conn, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.ready.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	conn := q.items[0]
	q.items = q.items[1:]
	return conn, true
}

// close marks the queue closed. Queued connections are still handed
// out by pop until the queue is drained.
func (q *connQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.ready.Broadcast()
}

// len reports the number of queued connections.
func (q *connQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
