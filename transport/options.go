package transport

import (
	"time"

	"go.uber.org/zap"

	"github.com/luma/respd/storage"
)

const DefaultCommandTimeout = 3 * time.Second

type Options struct {
	// Addr is the host:port to listen on
	Addr string

	// Reuseport controls setting SO_REUSEPORT. It is required when
	// NumListeners is more than one.
	Reuseport bool

	// NumListeners is the number of listeners accepting on Addr. They share
	// one identity pool. Defaults to 1.
	NumListeners int

	// MaxConnections is the capacity of the identity pool. Defaults to
	// DefaultMaxConnections.
	MaxConnections uint

	// MaxDepth and MaxUnitSize bound what a client may send, see
	// protocol.DecoderOptions.
	MaxDepth    int
	MaxUnitSize int

	// CommandTimeout bounds a single Store.Execute call
	CommandTimeout time.Duration

	Store storage.Store

	Log *zap.Logger
}
