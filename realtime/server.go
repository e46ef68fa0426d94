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

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-entity-sync/pkg/logging"
	"github.com/goliatone/go-entity-sync/syncerrors"
)

const (
	// maxFrameBytes bounds a single wire frame.
	maxFrameBytes = 1 << 20

	// outQueueLen is the per-connection outbound buffer. A subscriber that
	// falls this far behind is disconnected: one slow receiver must not
	// delay event transmission to all the other receivers.
	outQueueLen = 256

	// authTimeout bounds how long a fresh connection may take to present
	// its session token.
	authTimeout = 10 * time.Second
)

var (
	ErrServerClosed      = errors.New("realtime: server closed")
	ErrAddressDuplicated = errors.New("realtime: address already in use by this server")
	ErrAddressUnknown    = errors.New("realtime: unknown address")
)

// Authenticator validates a session token at connect time and resolves it to
// a subject (typically the user id the session belongs to).
type Authenticator interface {
	Authenticate(ctx context.Context, session string) (subject string, err error)
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context, session string) (string, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, session string) (string, error) {
	return f(ctx, session)
}

// ServerHandler consumes a frame a connected client sent to the server.
type ServerHandler func(ctx context.Context, subject string, data json.RawMessage)

// Server is the push side of the realtime sync channel: a TCP listener that
// authenticates each connection with a session token, then fans typed change
// events out to every connected subscriber. Delivery is best-effort and
// at-most-once, FIFO per connection; there is no replay buffer.
type Server struct {
	closed atomic.Bool
	wg     sync.WaitGroup

	log  logging.Logger
	auth Authenticator

	conns    *xsync.MapOf[string, *serverConn]
	listens  *xsync.MapOf[string, net.Listener]
	handlers *xsync.MapOf[string, ServerHandler]
}

type serverConn struct {
	name    string
	subject string
	conn    net.Conn
	// out is never closed: Emit may race close(), and sending on an open
	// channel is always safe. done signals the write loop instead.
	out    chan []byte
	done   chan struct{}
	closed atomic.Bool
}

func (c *serverConn) close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.done)
		c.conn.Close()
	}
}

// NewServer constructs a Server. auth is required; a nil logger discards.
func NewServer(log logging.Logger, auth Authenticator) *Server {
	if log == nil {
		log = logging.Nop()
	}
	return &Server{
		log:      log,
		auth:     auth,
		conns:    xsync.NewMapOf[string, *serverConn](),
		listens:  xsync.NewMapOf[string, net.Listener](),
		handlers: xsync.NewMapOf[string, ServerHandler](),
	}
}

// On registers a handler for frames of the given event name arriving from
// any authenticated client. Handlers run on the connection's read loop, so
// frames from one connection dispatch in FIFO order.
func (s *Server) On(eventName string, h ServerHandler) {
	s.handlers.Store(eventName, h)
}

// Listen starts accepting connections on addr. It returns once the listener
// is established; accepting continues until Close or context cancellation.
func (s *Server) Listen(ctx context.Context, addr string) error {
	if s.closed.Load() {
		return ErrServerClosed
	}

	// nil marks the slot so concurrent Listen calls on the same addr fail
	// while the listener is being created.
	if _, ok := s.listens.LoadOrStore(addr, nil); ok {
		return ErrAddressDuplicated
	}

	config := net.ListenConfig{}
	listener, err := config.Listen(ctx, "tcp", addr)
	if err != nil {
		s.listens.Delete(addr)
		return err
	}
	s.listens.Store(addr, listener)

	s.log.Info("realtime: listening", "addr", addr)

	s.wg.Add(1)
	go func() {
		s.keepListening(ctx, addr)
		s.wg.Done()
	}()

	return nil
}

// Addr reports the bound address for a previously requested listen address.
// Useful when listening on port 0.
func (s *Server) Addr(requested string) net.Addr {
	listener, ok := s.listens.Load(requested)
	if !ok || listener == nil {
		return nil
	}
	return listener.Addr()
}

func (s *Server) keepListening(ctx context.Context, addr string) {
	listener, ok := s.listens.Load(addr)
	if !ok || listener == nil {
		return
	}

	// Accept blocks, so cancellation has to unblock it by closing the
	// listener from the outside.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			listener.Close()
		case <-watchDone:
		}
	}()
	defer close(watchDone)

	for !s.closed.Load() {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			// reconnects are the client's problem, just continue
			s.log.Error("realtime: couldn't accept connection", "addr", addr, "err", err)
			continue
		}

		remoteAddr := conn.RemoteAddr().String()
		name := uuid.Must(uuid.NewV7()).String()
		s.log.Info("realtime: accepted connection", "addr", addr, "remoteAddr", remoteAddr, "name", name)

		s.wg.Add(1)
		go func() {
			s.keepConn(ctx, name, conn)
			s.wg.Done()
		}()
	}

	if l, ok := s.listens.LoadAndDelete(addr); ok && l != nil {
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Error("realtime: couldn't close listener", "addr", addr, "err", err)
		}
	}

	s.log.Info("realtime: listener closed", "addr", addr)
}

// keepConn runs the handshake and then the read/write loops for one
// connection, deregistering it when either side fails.
func (s *Server) keepConn(ctx context.Context, name string, conn net.Conn) {
	subject, reader, err := s.handshake(ctx, conn)
	if err != nil {
		s.log.Warn("realtime: handshake rejected", "name", name, "err", err)
		conn.Close()
		return
	}

	sc := &serverConn{
		name:    name,
		subject: subject,
		conn:    conn,
		out:     make(chan []byte, outQueueLen),
		done:    make(chan struct{}),
	}
	s.conns.Store(name, sc)
	if s.closed.Load() {
		// Lost the race with Close; don't leave a live connection behind.
		s.conns.Delete(name)
		sc.close()
		return
	}

	writeErr := make(chan error, 1)
	go func() { writeErr <- sc.keepWrite() }()

	readErr := s.keepRead(ctx, sc, reader)

	s.conns.Delete(name)
	sc.close()
	if err := <-writeErr; err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Error("realtime: couldn't write to peer", "name", name, "err", err)
	}
	if readErr != nil && !errors.Is(readErr, net.ErrClosed) {
		s.log.Error("realtime: couldn't read from peer", "name", name, "err", readErr)
	}
	s.log.Info("realtime: connection closed", "name", name, "subject", subject)
}

// handshake requires the first inbound frame to be an auth frame carrying a
// valid session token, within authTimeout. On success the connection is
// acknowledged and the buffered reader handed to the read loop; on failure
// the reason is written and the connection dropped.
func (s *Server) handshake(ctx context.Context, conn net.Conn) (string, *bufio.Reader, error) {
	if err := conn.SetReadDeadline(time.Now().Add(authTimeout)); err != nil {
		return "", nil, err
	}

	reader := bufio.NewReaderSize(conn, maxFrameBytes)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return "", nil, err
	}

	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		return "", nil, err
	}
	if f.Type != typeAuth {
		return "", nil, errors.New("first frame must be auth")
	}

	var auth authPayload
	if err := json.Unmarshal(f.Data, &auth); err != nil {
		return "", nil, err
	}

	subject, err := s.auth.Authenticate(ctx, auth.Session)
	if err != nil {
		if line, encErr := encodeFrame(typeAuthErr, authErrPayload{Message: "authentication failed"}); encErr == nil {
			conn.Write(line)
		}
		return "", nil, err
	}

	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return "", nil, err
	}

	ack, err := encodeFrame(typeAuthAck, authAckPayload{Subject: subject})
	if err != nil {
		return "", nil, err
	}
	if _, err := conn.Write(ack); err != nil {
		return "", nil, err
	}

	return subject, reader, nil
}

func (s *Server) keepRead(ctx context.Context, sc *serverConn, reader *bufio.Reader) error {
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if s.closed.Load() || sc.closed.Load() || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		var f frame
		if err := json.Unmarshal(line, &f); err != nil {
			s.log.Warn("realtime: dropping malformed frame", "name", sc.name, "err", err)
			continue
		}

		if handler, ok := s.handlers.Load(f.Type); ok {
			handler(ctx, sc.subject, f.Data)
		}
	}
}

func (sc *serverConn) keepWrite() error {
	for {
		select {
		case <-sc.done:
			return nil
		case line := <-sc.out:
			if _, err := sc.conn.Write(line); err != nil {
				return err
			}
		}
	}
}

// Emit fans payload out to every connected, authenticated subscriber under
// the given event name. Delivery is at-most-once and best-effort: a write
// failure or a full outbound queue drops the offending connection, never
// fails the emit. The only reported error is an unencodable payload.
func (s *Server) Emit(eventName string, payload any) error {
	line, err := encodeFrame(eventName, payload)
	if err != nil {
		return syncerrors.Wrap(syncerrors.KindChannelDelivery, err, "encode event")
	}

	s.conns.Range(func(name string, sc *serverConn) bool {
		if sc.closed.Load() {
			return true
		}
		select {
		case sc.out <- line:
		default:
			// Queue full: this receiver is too slow to keep, and blocking
			// here would stall delivery to everyone else.
			s.log.Warn("realtime: dropping slow connection", "name", name, "subject", sc.subject)
			s.conns.Delete(name)
			sc.close()
		}
		return true
	})

	return nil
}

// EmitChange emits a change event under its canonical name.
func (s *Server) EmitChange(ev ChangeEvent) error {
	return s.Emit(ev.Name(), ev)
}

// ConnCount returns the number of authenticated connections.
func (s *Server) ConnCount() int {
	return s.conns.Size()
}

// Close stops all listeners and drops every connection, then waits for the
// accept and connection goroutines to finish.
func (s *Server) Close() error {
	s.closed.Store(true)

	s.listens.Range(func(_ string, l net.Listener) bool {
		if l != nil {
			l.Close()
		}
		return true
	})
	s.listens.Clear()

	s.conns.Range(func(_ string, sc *serverConn) bool {
		sc.close()
		return true
	})
	s.conns.Clear()

	s.wg.Wait()
	return nil
}
