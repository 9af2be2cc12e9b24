package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/respd/storage"
)

const (
	// OutcomeBufferSize is how many finished connections can be waiting to
	// be reported before a connection task blocks on reporting.
	OutcomeBufferSize = 255

	maxAcceptBackoff = time.Second
)

// TCP is the connection supervisor. It owns the listeners and the
// identity pool, and starts one task per accepted connection.
type TCP struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup
	closeOnce  sync.Once

	addr    string
	options Options

	numListeners int
	listeners    []*TCPListener

	ids      *IDAllocator
	outcomes chan Outcome

	store storage.Store

	log *zap.Logger
}

func NewTCP(options Options) *TCP {
	numListeners := options.NumListeners
	if numListeners < 1 {
		numListeners = 1
	}

	maxConnections := options.MaxConnections
	if maxConnections == 0 {
		maxConnections = DefaultMaxConnections
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &TCP{
		addr:         options.Addr,
		options:      options,
		numListeners: numListeners,
		listeners:    make([]*TCPListener, 0, numListeners),
		ids:          NewIDAllocator(maxConnections),
		outcomes:     make(chan Outcome, OutcomeBufferSize),
		store:        options.Store,
		log:          log,
	}
}

// Start binds every listener and then accepts in the background. When
// Start returns without error the server is accepting connections.
// Cancelling ctx shuts the server down, as does Close.
func (w *TCP) Start(parentCtx context.Context) error {
	if w.numListeners > 1 && !w.options.Reuseport {
		return errors.New("multiple listeners require reuseport")
	}

	ctx, cancel := context.WithCancel(parentCtx)
	w.cancel = cancel

	w.log.Info("Starting tcp listeners", zap.Int("count", w.numListeners))

	for i := 0; i < w.numListeners; i++ {
		listener := NewTCPListener(
			ctx,
			w.addr,
			w.ids,
			w.outcomes,
			w.options,
			w.log.Named("listener").With(zap.Int("listener", i)),
		)

		if err := listener.Listen(w.options.Reuseport); err != nil {
			cancel()
			return multierr.Append(
				fmt.Errorf("Failed to listen on %s: %w", w.addr, err),
				w.closeListeners(),
			)
		}

		w.listeners = append(w.listeners, listener)
	}

	for _, listener := range w.listeners {
		w.startListener(listener)
	}

	go w.reportOutcomes()

	return nil
}

func (w *TCP) startListener(listener *TCPListener) {
	w.stopWaiter.Add(1)

	go func() {
		defer w.stopWaiter.Done()

		if err := listener.Serve(); err != nil {
			// The remaining listeners keep serving
			w.log.Error("Listener stopped accepting", zap.Error(err))
		}
	}()
}

// reportOutcomes logs every finished connection until Close.
func (w *TCP) reportOutcomes() {
	for outcome := range w.outcomes {
		fields := []zap.Field{
			zap.Uint64("connID", uint64(outcome.ID)),
			zap.Stringer("reason", outcome.Reason),
			zap.Int("live", w.ids.InUse()),
		}

		if outcome.Err != nil {
			fields = append(fields, zap.Error(outcome.Err))
		}

		w.log.Debug("Connection finished", fields...)
	}
}

func (t *TCP) Store() storage.Store {
	return t.store
}

// Addr returns the address the first listener is bound to, or nil before
// Start.
func (t *TCP) Addr() net.Addr {
	if len(t.listeners) == 0 {
		return nil
	}

	return t.listeners[0].Addr()
}

// LiveConnections returns how many connections currently hold an id.
func (t *TCP) LiveConnections() int {
	return t.ids.InUse()
}

// MaxConnections returns the capacity of the identity pool.
func (t *TCP) MaxConnections() int {
	return t.ids.Capacity()
}

// Close stops accepting, closes every connection, and waits for all
// connection tasks to finish.
func (w *TCP) Close() (err error) {
	w.closeOnce.Do(func() {
		w.log.Info("Stopping TCP server")

		if w.cancel != nil {
			w.cancel()
		}

		err = w.closeListeners()

		w.log.Info("Waiting for listeners")
		w.stopWaiter.Wait()
		w.log.Info("Listeners stopped")

		close(w.outcomes)
	})

	return err
}

func (w *TCP) closeListeners() (err error) {
	for _, listener := range w.listeners {
		err = multierr.Append(err, listener.Close())
	}

	return err
}

// TCPListener accepts connections on one socket.
type TCPListener struct {
	ctx context.Context

	addr     string
	listener net.Listener

	ids        *IDAllocator
	outcomes   chan<- Outcome
	loopWaiter sync.WaitGroup

	options Options
	store   storage.Store

	log *zap.Logger
}

func NewTCPListener(
	ctx context.Context,
	addr string,
	ids *IDAllocator,
	outcomes chan<- Outcome,
	options Options,
	log *zap.Logger,
) *TCPListener {
	return &TCPListener{
		ctx:      ctx,
		addr:     addr,
		ids:      ids,
		outcomes: outcomes,
		options:  options,
		store:    options.Store,
		log:      log,
	}
}

// Listen binds the listening socket.
func (t *TCPListener) Listen(reusePort bool) (err error) {
	if reusePort {
		t.listener, err = reuseport.Listen("tcp", t.addr)
	} else {
		t.listener, err = net.Listen("tcp", t.addr)
	}

	return err
}

func (t *TCPListener) Addr() net.Addr {
	return t.listener.Addr()
}

// Close stops accepting. Connections are closed through the context.
func (t *TCPListener) Close() error {
	if t.listener == nil {
		return nil
	}

	if err := t.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}

// Serve accepts connections until the listener is closed, then waits for
// the connections it started to finish.
func (t *TCPListener) Serve() error {
	defer func() {
		t.log.Info("Waiting for connections to stop")
		t.loopWaiter.Wait()
		t.log.Info("Listener stopped")
	}()

	go func() {
		<-t.ctx.Done()

		t.log.Info("Closing listener")
		if err := t.Close(); err != nil {
			t.log.Warn("TCP Listener did not close cleanly", zap.Error(err))
		}
	}()

	var backoff time.Duration

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if t.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				// The listener was closed while we were waiting for new
				// connections, that's fine.
				t.log.Info("Stopped accepting new connections")
				return nil
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Temporary() {
				backoff = nextBackoff(backoff)
				t.log.Warn("Accept failed, retrying", zap.Error(err), zap.Duration("backoff", backoff))
				time.Sleep(backoff)
				continue
			}

			return err
		}

		backoff = 0
		t.handle(conn)
	}
}

// handle admits conn if an id is free and starts its task. It never waits
// on the connection itself.
func (t *TCPListener) handle(conn net.Conn) {
	id, ok := t.ids.Allocate()
	if !ok {
		t.log.Warn("Rejecting connection",
			zap.Error(ErrAllocatorExhausted),
			zap.String("remoteAddr", conn.RemoteAddr().String()),
			zap.Int("capacity", t.ids.Capacity()))

		if err := conn.Close(); err != nil {
			t.log.Debug("Failed to close rejected connection", zap.Error(err))
		}

		return
	}

	tcpConn := NewTCPConn(id, conn, t.store, t.options, t.log.Named("conn"))

	t.loopWaiter.Add(1)
	go func() {
		defer t.loopWaiter.Done()

		outcome := tcpConn.Serve(t.ctx)
		t.ids.Release(id)
		t.outcomes <- outcome
	}()
}

func nextBackoff(backoff time.Duration) time.Duration {
	if backoff == 0 {
		return 5 * time.Millisecond
	}

	backoff *= 2
	if backoff > maxAcceptBackoff {
		backoff = maxAcceptBackoff
	}

	return backoff
}
