package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Status is the outcome of a bounded wait on the connection.
type Status int

const (
	// Delivered means the operation completed within its bound.
	Delivered Status = iota
	// TimedOut means the bound expired (or the caller's context ended) first.
	TimedOut
	// Closed means the connection is gone; no further operation will succeed.
	Closed
)

func (s Status) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case TimedOut:
		return "timed-out"
	case Closed:
		return "closed"
	default:
		return "status(" + strconv.Itoa(int(s)) + ")"
	}
}

var (
	// ErrClosed is returned by operations on a connection whose read side has ended.
	ErrClosed = errors.New("websocket connection closed")

	// ErrWriteBusy is returned when a different message is requested while a
	// previous write is still in flight.
	ErrWriteBusy = errors.New("another write is still in flight")
)

// HandshakeError reports a failed opening handshake.
type HandshakeError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("handshake with %s failed (HTTP %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("handshake with %s failed: %v", e.URL, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// Options configures Dial.
type Options struct {
	// HandshakeTimeout bounds the opening handshake. Zero means 10 seconds.
	HandshakeTimeout time.Duration

	// DiscardInbound drops data frames instead of queueing them for ReadWithin.
	// The read pump still runs so that close frames and pongs are observed.
	DiscardInbound bool
}

// Conn is a client connection to one WebSocket endpoint.
//
// A single read pump goroutine owns the read side. Data frames are handed to
// ReadWithin over an unbuffered channel, so arrival order is preserved and
// nothing is buffered beyond the frame being delivered. Pings go through
// WriteControl, which gorilla allows concurrently with the data writer.
type Conn struct {
	conn *websocket.Conn

	frames  chan string
	pongs   chan string
	closed  chan struct{} // read pump exited
	done    chan struct{} // Close called
	discard bool

	closeOnce sync.Once
	reasonMu  sync.Mutex
	reason    error

	writeMu sync.Mutex
	pending *pendingWrite

	probeSeq atomic.Uint64
}

type pendingWrite struct {
	msg  string
	done chan struct{}
	err  error
}

const controlWait = time.Second

// Dial opens a connection to url. Client-side keepalive pings are never sent
// implicitly; callers drive liveness with Ping.
func Dial(ctx context.Context, url string, opts Options) (*Conn, error) {
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}

	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		herr := &HandshakeError{URL: url, Err: err}
		if resp != nil {
			herr.StatusCode = resp.StatusCode
			resp.Body.Close()
		}
		return nil, herr
	}

	c := &Conn{
		conn:    ws,
		frames:  make(chan string),
		pongs:   make(chan string, 1),
		closed:  make(chan struct{}),
		done:    make(chan struct{}),
		discard: opts.DiscardInbound,
	}

	ws.SetPongHandler(func(appData string) error {
		// Keep only the newest pong; Ping discards tokens it is not waiting for.
		select {
		case <-c.pongs:
		default:
		}
		c.pongs <- appData
		return nil
	})

	go c.readPump()
	return c, nil
}

// readPump reads until the connection fails, forwarding data frames in order.
func (c *Conn) readPump() {
	defer close(c.closed)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.setReason(err)
			return
		}

		if c.discard {
			continue
		}

		select {
		case c.frames <- string(data):
		case <-c.done:
			c.setReason(ErrClosed)
			return
		}
	}
}

func (c *Conn) setReason(err error) {
	c.reasonMu.Lock()
	defer c.reasonMu.Unlock()
	if c.reason == nil {
		c.reason = err
	}
}

// CloseReason returns the error that ended the read side, or nil while the
// connection is open.
func (c *Conn) CloseReason() error {
	c.reasonMu.Lock()
	defer c.reasonMu.Unlock()
	return c.reason
}

// ReadWithin waits up to d for the next inbound frame. A cancelled ctx is
// reported as TimedOut so the caller re-checks its own loop condition.
func (c *Conn) ReadWithin(ctx context.Context, d time.Duration) (string, Status) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case frame := <-c.frames:
		return frame, Delivered
	case <-c.closed:
		return "", Closed
	case <-timer.C:
		return "", TimedOut
	case <-ctx.Done():
		return "", TimedOut
	}
}

// SendWithin writes msg as a text frame and waits up to d for the write to
// return. If the bound expires the write keeps running; a later SendWithin
// with the same msg rejoins it instead of starting a second writer.
func (c *Conn) SendWithin(ctx context.Context, msg string, d time.Duration) (Status, error) {
	select {
	case <-c.closed:
		return Closed, c.closedErr()
	default:
	}

	p, err := c.startWrite(msg)
	if err != nil {
		return TimedOut, err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-p.done:
		c.finishWrite(p)
		if p.err != nil {
			// gorilla leaves the connection unusable after a failed write.
			return Closed, p.err
		}
		return Delivered, nil
	case <-c.closed:
		return Closed, c.closedErr()
	case <-timer.C:
		return TimedOut, nil
	case <-ctx.Done():
		return TimedOut, nil
	}
}

func (c *Conn) startWrite(msg string) (*pendingWrite, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.pending != nil {
		if c.pending.msg != msg {
			return nil, ErrWriteBusy
		}
		return c.pending, nil
	}

	p := &pendingWrite{msg: msg, done: make(chan struct{})}
	c.pending = p
	go func() {
		p.err = c.conn.WriteMessage(websocket.TextMessage, []byte(msg))
		close(p.done)
	}()
	return p, nil
}

func (c *Conn) finishWrite(p *pendingWrite) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.pending == p {
		c.pending = nil
	}
}

// Ping issues one liveness probe and blocks until the matching pong arrives,
// the connection closes, or ctx is done. There is no other bound.
func (c *Conn) Ping(ctx context.Context) error {
	token := strconv.FormatUint(c.probeSeq.Add(1), 10)

	if err := c.conn.WriteControl(websocket.PingMessage, []byte(token), time.Now().Add(controlWait)); err != nil {
		return fmt.Errorf("write ping: %w", err)
	}

	for {
		select {
		case got := <-c.pongs:
			if got == token {
				return nil
			}
		case <-c.closed:
			return c.closedErr()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Conn) closedErr() error {
	if reason := c.CloseReason(); reason != nil {
		return fmt.Errorf("%w: %w", ErrClosed, reason)
	}
	return ErrClosed
}

// Close sends a normal closure frame and tears down the socket. It is safe to
// call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlWait))
		err = c.conn.Close()
	})
	return err
}

// IsPeerClose reports whether err carries a close frame sent by the peer.
func IsPeerClose(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce)
}
