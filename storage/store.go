package storage

import (
	"context"

	"github.com/luma/respd/protocol"
)

// Store executes parsed commands against the keyspace. Execute is called
// concurrently from every connection and must be safe for that.
type Store interface {
	// Execute runs cmd and returns the reply to send to the client. Failures
	// of the command itself are returned as protocol.ErrorString replies.
	Execute(ctx context.Context, cmd protocol.Command) protocol.RawPiece

	Restore(values []byte) error
	Backup() ([]byte, error)

	Close() error
}
