package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luma/respd/protocol"
)

var ErrNotConnected = errors.New("client is not connected")

// ReplyError is returned by the typed helpers when the server answered with
// an error piece.
type ReplyError struct {
	Reply protocol.ErrorString
}

func (e *ReplyError) Error() string {
	if len(e.Reply.Detail) == 0 {
		return string(e.Reply.Kind)
	}

	return string(e.Reply.Kind) + " " + string(e.Reply.Detail)
}

// Conn is a RESP2 client connection. Requests are sent one at a time and
// each waits for its reply, so Conn is safe for concurrent use.
type Conn struct {
	mu sync.Mutex

	conn    net.Conn
	decoder *protocol.Decoder
	writer  *bufio.Writer

	log *zap.Logger
}

func New(log *zap.Logger) *Conn {
	if log == nil {
		log = zap.NewNop()
	}

	return &Conn{log: log}
}

func (c *Conn) Connect(ctx context.Context, addr string) error {
	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn = conn
	c.decoder = protocol.NewDecoder(conn, protocol.DecoderOptions{})
	c.writer = bufio.NewWriter(conn)

	c.log.Debug("Connected", zap.String("addr", addr))

	return nil
}

func (c *Conn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil

	return err
}

// Do sends args as an array of bulk strings and returns the decoded reply.
// Error replies are returned as protocol.ErrorString pieces, not as errors.
func (c *Conn) Do(ctx context.Context, args ...[]byte) (protocol.RawPiece, error) {
	req := make(protocol.Array, 0, len(args))
	for _, arg := range args {
		req = append(req, protocol.BulkString{Data: arg})
	}

	return c.Send(ctx, req)
}

// Send writes any piece as the request and returns the decoded reply. Any
// error leaves the stream at an unknown position, so the connection is
// closed and later calls return ErrNotConnected.
func (c *Conn) Send(ctx context.Context, req protocol.RawPiece) (protocol.RawPiece, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	reply, err := c.roundTrip(ctx, req)
	if err != nil {
		c.log.Debug("Dropping connection after failed request", zap.Error(err))
		c.conn.Close()
		c.conn = nil
		return nil, err
	}

	return reply, nil
}

func (c *Conn) roundTrip(ctx context.Context, req protocol.RawPiece) (protocol.RawPiece, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}

	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if err := protocol.WritePiece(c.writer, req); err != nil {
		return nil, err
	}

	if err := c.writer.Flush(); err != nil {
		return nil, err
	}

	return c.decoder.Decode()
}

func (c *Conn) Ping(ctx context.Context) error {
	reply, err := c.Do(ctx, []byte("PING"))
	if err != nil {
		return err
	}

	return expectSimple(reply, "PONG")
}

func (c *Conn) Quit(ctx context.Context) error {
	reply, err := c.Do(ctx, []byte("QUIT"))
	if err != nil {
		return err
	}

	return expectSimple(reply, "OK")
}

func (c *Conn) Set(ctx context.Context, key string, value []byte) error {
	reply, err := c.Do(ctx, []byte("SET"), []byte(key), value)
	if err != nil {
		return err
	}

	return expectSimple(reply, "OK")
}

// Get returns the value of key. ok is false when the key does not exist.
func (c *Conn) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	reply, err := c.Do(ctx, []byte("GET"), []byte(key))
	if err != nil {
		return nil, false, err
	}

	switch r := reply.(type) {
	case protocol.BulkString:
		return r.Data, true, nil
	case protocol.Null:
		return nil, false, nil
	case protocol.ErrorString:
		return nil, false, &ReplyError{Reply: r}
	default:
		return nil, false, fmt.Errorf("unexpected reply to GET: %T", reply)
	}
}

func expectSimple(reply protocol.RawPiece, want string) error {
	switch r := reply.(type) {
	case protocol.SimpleString:
		if string(r.Data) == want {
			return nil
		}
		return fmt.Errorf("expected %s, got %s", want, r.Data)
	case protocol.ErrorString:
		return &ReplyError{Reply: r}
	default:
		return fmt.Errorf("expected %s, got %T", want, reply)
	}
}
