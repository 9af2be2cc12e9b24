package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/luma/respd/protocol"
	"github.com/luma/respd/storage"
)

// CloseReason is the terminal state of a connection.
type CloseReason int

const (
	// ClosedClean means the peer closed the stream, or sent QUIT, with no
	// partial frame pending.
	ClosedClean CloseReason = iota

	// ClosedError means an I/O failure or a protocol error ended the
	// connection.
	ClosedError

	// ClosedShutdown means the server closed the connection while shutting
	// down.
	ClosedShutdown
)

func (r CloseReason) String() string {
	switch r {
	case ClosedClean:
		return "clean"
	case ClosedError:
		return "error"
	case ClosedShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Outcome reports how a connection ended. Err is nil for a clean close.
type Outcome struct {
	ID     ConnID
	Reason CloseReason
	Err    error
}

// TCPConn serves one client. It is the only reader and the only writer of
// its socket, so replies go out in the order commands were read.
type TCPConn struct {
	id   ConnID
	conn net.Conn

	decoder *protocol.Decoder
	writer  *bufio.Writer

	// flags is reserved for protocol negotiation, RESP2 does not use it
	flags uint32

	store          storage.Store
	commandTimeout time.Duration

	log *zap.Logger
}

func NewTCPConn(
	id ConnID,
	conn net.Conn,
	store storage.Store,
	options Options,
	log *zap.Logger,
) *TCPConn {
	commandTimeout := options.CommandTimeout
	if commandTimeout <= 0 {
		commandTimeout = DefaultCommandTimeout
	}

	return &TCPConn{
		id:   id,
		conn: conn,
		decoder: protocol.NewDecoder(conn, protocol.DecoderOptions{
			MaxDepth:    options.MaxDepth,
			MaxUnitSize: options.MaxUnitSize,
		}),
		writer:         bufio.NewWriter(conn),
		store:          store,
		commandTimeout: commandTimeout,
		log:            log.With(zap.Uint64("connID", uint64(id))),
	}
}

func (t *TCPConn) ID() ConnID {
	return t.id
}

// Serve runs the read, parse, dispatch loop until the client goes away,
// an error ends the connection, or ctx is cancelled. The socket is closed
// when Serve returns.
func (t *TCPConn) Serve(ctx context.Context) Outcome {
	log := t.log.Named("readLoop")
	log.Debug("Serving connection", zap.String("remoteAddr", t.conn.RemoteAddr().String()))

	// Closing the socket is the only way to interrupt a blocked read
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
			t.conn.Close()
		case <-stop:
		}
	}()

	defer func() {
		if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Warn("Connection did not close cleanly", zap.Error(err))
		}
	}()

	for {
		piece, err := t.decoder.DecodeRequest()
		if err != nil {
			return t.finish(ctx, log, err)
		}

		cmd, err := protocol.ParseCommand(piece)
		if err != nil {
			return t.finish(ctx, log, err)
		}

		if _, ok := cmd.(protocol.QuitCommand); ok {
			if err := t.send(protocol.WriteOk); err != nil {
				return t.finish(ctx, log, err)
			}

			log.Debug("Client QUIT, exiting...")
			return Outcome{ID: t.id, Reason: ClosedClean}
		}

		if err := t.reply(t.dispatch(ctx, cmd)); err != nil {
			return t.finish(ctx, log, err)
		}
	}
}

func (t *TCPConn) dispatch(ctx context.Context, cmd protocol.Command) protocol.RawPiece {
	execCtx, cancel := context.WithTimeout(ctx, t.commandTimeout)
	defer cancel()

	return t.store.Execute(execCtx, cmd)
}

func (t *TCPConn) reply(piece protocol.RawPiece) error {
	return t.send(func(w io.Writer) error {
		return protocol.WritePiece(w, piece)
	})
}

func (t *TCPConn) send(write func(io.Writer) error) error {
	if err := write(t.writer); err != nil {
		return &protocol.IOError{Err: err}
	}

	if err := t.writer.Flush(); err != nil {
		return &protocol.IOError{Err: err}
	}

	return nil
}

// finish maps the error that ended the loop to an Outcome. Errors caused by
// the client get one best effort error reply before the socket closes.
func (t *TCPConn) finish(ctx context.Context, log *zap.Logger, err error) Outcome {
	switch {
	case errors.Is(err, protocol.ErrEndOfStream):
		log.Debug("Client closed the connection")
		return Outcome{ID: t.id, Reason: ClosedClean}

	case ctx.Err() != nil:
		log.Debug("Connection closed for shutdown")
		return Outcome{ID: t.id, Reason: ClosedShutdown, Err: ctx.Err()}

	case protocol.IsClientError(err):
		log.Warn("Failed to handle client request", zap.Error(err))

		rerr := t.send(func(w io.Writer) error {
			return protocol.WriteError(w, err.Error())
		})
		if rerr != nil {
			log.Debug("Failed to send error reply", zap.Error(rerr))
		}

		return Outcome{ID: t.id, Reason: ClosedError, Err: err}

	default:
		log.Warn("Connection failed", zap.Error(err))
		return Outcome{ID: t.id, Reason: ClosedError, Err: err}
	}
}
