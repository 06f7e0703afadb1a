// Package transport implements the two OSC wire carriers of spec.md
// §4.8: a best-effort UDP sender and a SLIP-framed TCP sender with lazy
// reconnect, both behind a shared bounded send queue.
package transport

import (
	"net"
	"sync"
	"time"

	"github.com/sound2osc/engine/internal/diagnostics"
	"github.com/sound2osc/engine/internal/oscproto"
)

// queueCapacity is the shared bound of spec.md §4.8 ("a bounded send
// queue of 256 messages").
const queueCapacity = 256

// reconnectInterval is how often a failed TCP connection is retried,
// per spec.md §4.8.
const reconnectInterval = 2 * time.Second

// tcpWriteTimeout bounds a single TCP write, per spec.md §5
// ("a TCP send may await socket writability subject to a 200 ms
// timeout").
const tcpWriteTimeout = 200 * time.Millisecond

// Sender is the capability Engine needs from a transport: send one
// already-encoded OSC packet.
type Sender interface {
	Send(packet []byte)
	// Close releases any held socket. Safe to call more than once.
	Close()
}

// queue is the bounded, oldest-drop buffer both transports share. Send
// (the caller's goroutine, typically Engine's tick loop) pushes into it;
// each transport's own background writer goroutine drains it one packet
// at a time, so a burst that arrives faster than the socket can absorb
// it genuinely backs up against queueCapacity instead of being written
// synchronously inside Send. It is safe for concurrent use by exactly
// one pusher and one drainer, matching the Processing context's
// single-writer model (spec.md §5).
type queue struct {
	mu          sync.Mutex
	items       [][]byte
	diag        diagnostics.Sink
	overflowing bool
}

func newQueue(diag diagnostics.Sink) *queue {
	if diag == nil {
		diag = diagnostics.NopSink{}
	}
	return &queue{diag: diag}
}

// push appends packet, dropping the oldest entry once the queue is at
// capacity, per spec.md §4.8 / §7's TransportOverflow kind. Only the
// first drop of a sustained overflow emits a diagnostic; repeated drops
// within the same overflow episode stay silent until the backlog drains
// back under capacity, so one 300-message burst produces one warning
// rather than one per dropped message.
func (q *queue) push(packet []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= queueCapacity {
		q.items = q.items[1:]
		if !q.overflowing {
			q.overflowing = true
			q.diag.Emit(diagnostics.Event{
				Level:   diagnostics.Warn,
				Code:    diagnostics.CodeTransportOverflow,
				Message: "send queue full, dropped oldest message",
			})
		}
	} else {
		q.overflowing = false
	}
	q.items = append(q.items, packet)
}

// drainOne pops the oldest queued packet, if any.
func (q *queue) drainOne() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	p := q.items[0]
	q.items = q.items[1:]
	return p, true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// UDPSender is a best-effort UDP transport: "a failed send is logged,
// not retried", per spec.md §4.8.
type UDPSender struct {
	conn *net.UDPConn
	diag diagnostics.Sink
	q    *queue

	wake      chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
}

// NewUDPSender dials addr ("host:port") over UDP. A resolve or dial
// failure is returned as an error and no sender is built; once built, a
// failed write is reported as a diagnostic and the packet is dropped.
func NewUDPSender(addr string, diag diagnostics.Sink) (*UDPSender, error) {
	if diag == nil {
		diag = diagnostics.NopSink{}
	}
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	u := &UDPSender{
		conn:   conn,
		diag:   diag,
		q:      newQueue(diag),
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	go u.writeLoop()
	return u, nil
}

// Send enqueues packet and wakes the writer goroutine; it never blocks
// on the socket itself, so a burst of Sends genuinely backs up in the
// shared queue instead of being written inline.
func (u *UDPSender) Send(packet []byte) {
	u.q.push(packet)
	u.nudge()
}

func (u *UDPSender) nudge() {
	select {
	case u.wake <- struct{}{}:
	default:
	}
}

// writeLoop is the single goroutine draining u.q and writing to the
// socket, per spec.md §5's single-writer transport model.
func (u *UDPSender) writeLoop() {
	for {
		select {
		case <-u.closed:
			return
		case <-u.wake:
		}
		for {
			select {
			case <-u.closed:
				return
			default:
			}
			packet, ok := u.q.drainOne()
			if !ok {
				break
			}
			if _, err := u.conn.Write(packet); err != nil {
				u.diag.Emit(diagnostics.Event{
					Level:   diagnostics.Warn,
					Code:    diagnostics.CodeTransportTransient,
					Message: "udp send failed: " + err.Error(),
				})
			}
		}
	}
}

// Close implements Sender.
func (u *UDPSender) Close() {
	u.closeOnce.Do(func() { close(u.closed) })
	if u.conn != nil {
		u.conn.Close()
	}
}

// TCPSender is the SLIP-framed transport of spec.md §4.8: it connects
// lazily on first send and retries at most once every
// reconnectInterval after a failure.
type TCPSender struct {
	addr string
	diag diagnostics.Sink
	q    *queue

	wake      chan struct{}
	closeOnce sync.Once
	closed    chan struct{}

	// connMu guards conn/lastDialAt: writeLoop is their only reader and
	// mutator, but Close also touches conn to release the socket
	// promptly from whatever goroutine calls it.
	connMu     sync.Mutex
	conn       net.Conn
	lastDialAt time.Time
}

// NewTCPSender builds a TCPSender that will dial addr on first Send.
func NewTCPSender(addr string, diag diagnostics.Sink) *TCPSender {
	if diag == nil {
		diag = diagnostics.NopSink{}
	}
	t := &TCPSender{
		addr:   addr,
		diag:   diag,
		q:      newQueue(diag),
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	go t.writeLoop()
	return t
}

func (t *TCPSender) ensureConnected() bool {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.conn != nil {
		return true
	}
	if !t.lastDialAt.IsZero() && time.Since(t.lastDialAt) < reconnectInterval {
		return false
	}
	t.lastDialAt = time.Now()
	conn, err := net.DialTimeout("tcp", t.addr, tcpWriteTimeout)
	if err != nil {
		t.diag.Emit(diagnostics.Event{
			Level:   diagnostics.Warn,
			Code:    diagnostics.CodeTransportTransient,
			Message: "tcp connect failed: " + err.Error(),
		})
		return false
	}
	t.conn = conn
	return true
}

// Send SLIP-frames packet and enqueues it; it never blocks on the
// socket, so a burst of Sends genuinely backs up in the shared queue
// instead of being written inline.
func (t *TCPSender) Send(packet []byte) {
	t.q.push(oscproto.SlipEncode(packet))
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// writeLoop is the single goroutine draining t.q, reconnecting lazily,
// and writing to the socket, per spec.md §5's single-writer transport
// model. A write failure drops the connection so the next packet
// retries after reconnectInterval.
func (t *TCPSender) writeLoop() {
	for {
		select {
		case <-t.closed:
			return
		case <-t.wake:
		}
		for {
			select {
			case <-t.closed:
				return
			default:
			}
			framed, ok := t.q.drainOne()
			if !ok {
				break
			}
			if !t.ensureConnected() {
				continue
			}
			t.connMu.Lock()
			conn := t.conn
			conn.SetWriteDeadline(time.Now().Add(tcpWriteTimeout))
			_, writeErr := conn.Write(framed)
			if writeErr != nil {
				conn.Close()
				t.conn = nil
			}
			t.connMu.Unlock()
			if writeErr != nil {
				t.diag.Emit(diagnostics.Event{
					Level:   diagnostics.Warn,
					Code:    diagnostics.CodeTransportTransient,
					Message: "tcp write failed: " + writeErr.Error(),
				})
			}
		}
	}
}

// Close implements Sender.
func (t *TCPSender) Close() {
	t.closeOnce.Do(func() { close(t.closed) })
	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}
