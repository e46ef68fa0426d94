package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-entity-sync/pkg/logging"
	"github.com/goliatone/go-entity-sync/syncerrors"
)

// State is the client connection state. Transitions:
// disconnected -> connecting -> connected -> disconnected. The connected
// state is only entered after the auth handshake succeeds; any transport
// error forces disconnected. The client never reconnects on its own -
// reconnection policy belongs to the surrounding application.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

var (
	ErrAlreadyConnected = errors.New("realtime: client already connected")
	ErrNotConnected     = errors.New("realtime: client not connected")
	ErrAuthRejected     = errors.New("realtime: authentication rejected")
)

// Handler consumes the data of one received frame. Handlers for the same
// event name run sequentially in arrival order (FIFO per connection).
type Handler func(data json.RawMessage)

// Client is the subscriber side of the realtime sync channel.
type Client struct {
	log   logging.Logger
	state atomic.Int32

	mu   sync.Mutex
	conn net.Conn
	// out is never closed: Emit may race a disconnect, and sending on an
	// open channel is always safe. done signals the write loop instead.
	out      chan []byte
	done     chan struct{}
	err      error
	handlers map[string][]Handler
	wg       sync.WaitGroup
}

// NewClient constructs a disconnected client. A nil logger discards.
func NewClient(log logging.Logger) *Client {
	if log == nil {
		log = logging.Nop()
	}
	return &Client{
		log:      log,
		handlers: make(map[string][]Handler),
	}
}

// State returns the current connection state.
func (c *Client) State() State { return State(c.state.Load()) }

// Err returns the error that forced the last transition to disconnected,
// if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// On registers a handler for the given event name. Registration is allowed
// in any state and survives reconnects of the same Client value.
func (c *Client) On(eventName string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventName] = append(c.handlers[eventName], h)
}

// Connect dials addr, authenticates with the session token, and starts the
// receive/send loops. It returns once the server acknowledges the session.
func (c *Client) Connect(ctx context.Context, addr, session string) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return ErrAlreadyConnected
	}

	fail := func(err error) error {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		c.state.Store(int32(StateDisconnected))
		return err
	}

	dialer := net.Dialer{Timeout: time.Minute}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fail(err)
	}

	auth, err := encodeFrame(typeAuth, authPayload{Session: session})
	if err != nil {
		conn.Close()
		return fail(err)
	}
	if _, err := conn.Write(auth); err != nil {
		conn.Close()
		return fail(err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	} else {
		conn.SetReadDeadline(time.Now().Add(authTimeout))
	}

	reader := bufio.NewReaderSize(conn, maxFrameBytes)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		conn.Close()
		return fail(err)
	}

	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		conn.Close()
		return fail(err)
	}
	if f.Type != typeAuthAck {
		conn.Close()
		return fail(ErrAuthRejected)
	}
	conn.SetReadDeadline(time.Time{})

	c.mu.Lock()
	c.conn = conn
	c.out = make(chan []byte, outQueueLen)
	c.done = make(chan struct{})
	c.err = nil
	c.mu.Unlock()
	c.state.Store(int32(StateConnected))

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.keepRead(reader)
	}()
	go func() {
		defer c.wg.Done()
		c.keepWrite(conn)
	}()

	c.log.Info("realtime: client connected", "addr", addr)
	return nil
}

func (c *Client) keepRead(reader *bufio.Reader) {
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.log.Error("realtime: client read failed", "err", err)
			}
			c.disconnect(err)
			return
		}

		var f frame
		if err := json.Unmarshal(line, &f); err != nil {
			c.log.Warn("realtime: client dropping malformed frame", "err", err)
			continue
		}

		c.mu.Lock()
		handlers := append([]Handler(nil), c.handlers[f.Type]...)
		c.mu.Unlock()

		// Dispatch synchronously on the read loop: same-named events keep
		// their emission order per connection.
		for _, h := range handlers {
			h(f.Data)
		}
	}
}

func (c *Client) keepWrite(conn net.Conn) {
	c.mu.Lock()
	out, done := c.out, c.done
	c.mu.Unlock()

	for {
		select {
		case <-done:
			return
		case line := <-out:
			if _, err := conn.Write(line); err != nil {
				if !errors.Is(err, net.ErrClosed) {
					c.log.Error("realtime: client write failed", "err", err)
				}
				c.disconnect(err)
				return
			}
		}
	}
}

// Emit queues a frame for the server. Best-effort: a full queue is a
// delivery failure, not a blocking send.
func (c *Client) Emit(eventName string, payload any) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}

	line, err := encodeFrame(eventName, payload)
	if err != nil {
		return syncerrors.Wrap(syncerrors.KindChannelDelivery, err, "encode event")
	}

	c.mu.Lock()
	out := c.out
	c.mu.Unlock()
	if out == nil {
		return ErrNotConnected
	}

	select {
	case out <- line:
		return nil
	default:
		return syncerrors.New(syncerrors.KindChannelDelivery, "outbound queue full")
	}
}

// disconnect records err and forces the disconnected state. Idempotent.
func (c *Client) disconnect(err error) {
	if !c.state.CompareAndSwap(int32(StateConnected), int32(StateDisconnected)) {
		return
	}

	c.mu.Lock()
	if c.err == nil && err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		c.err = err
	}
	conn := c.conn
	done := c.done
	c.conn = nil
	c.out = nil
	c.done = nil
	c.mu.Unlock()

	if done != nil {
		close(done)
	}
	if conn != nil {
		conn.Close()
	}
}

// Close drops the connection, if any, and waits for the loops to stop.
func (c *Client) Close() error {
	c.disconnect(nil)
	c.wg.Wait()
	return nil
}
