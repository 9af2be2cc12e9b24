package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/luma/respd/protocol"
)

var (
	ErrStoreClosed = errors.New("store is closed")
	ErrBinaryKey   = errors.New("key is not valid UTF-8")
)

type InmemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte

	// stop willl be closed when Close() is called
	stop     chan struct{}
	stopOnce sync.Once
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values: make(map[string][]byte),
		stop:   make(chan struct{}),
	}
}

func (i *InmemoryStore) Close() error {
	i.stopOnce.Do(func() {
		close(i.stop)
	})

	return nil
}

func (i *InmemoryStore) Execute(ctx context.Context, cmd protocol.Command) protocol.RawPiece {
	if !i.isRunning() {
		return protocol.ErrorReply(ErrStoreClosed.Error())
	}

	if err := ctx.Err(); err != nil {
		return protocol.ErrorReply(err.Error())
	}

	switch c := cmd.(type) {
	case protocol.GetCommand:
		value, ok := i.Get(c.Key)
		if !ok {
			return protocol.Null{}
		}

		return protocol.BulkString{Data: value}

	case protocol.SetCommand:
		i.Set(c.Key, c.Value)
		return protocol.OK

	case protocol.DelCommand:
		return protocol.Integer(i.Del(c.Keys...))

	case protocol.ExistsCommand:
		return protocol.Integer(i.Exists(c.Keys...))

	case protocol.PingCommand:
		if c.Message == nil {
			return protocol.Pong
		}

		return protocol.BulkString{Data: c.Message}

	case protocol.EchoCommand:
		return protocol.BulkString{Data: c.Message}

	default:
		return protocol.ErrorReply(fmt.Sprintf("unknown command '%s'", cmd.Name()))
	}
}

// Get returns a copy of the value of key.
func (i *InmemoryStore) Get(key []byte) ([]byte, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	value, ok := i.values[string(key)]
	if !ok {
		return nil, false
	}

	return append([]byte{}, value...), true
}

func (i *InmemoryStore) Set(key, value []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.values[string(key)] = append([]byte{}, value...)
}

// Del removes keys and returns how many existed.
func (i *InmemoryStore) Del(keys ...[]byte) int64 {
	i.mu.Lock()
	defer i.mu.Unlock()

	var n int64
	for _, key := range keys {
		if _, ok := i.values[string(key)]; ok {
			delete(i.values, string(key))
			n++
		}
	}

	return n
}

// Exists counts how many of keys exist. A key named twice counts twice.
func (i *InmemoryStore) Exists(keys ...[]byte) int64 {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var n int64
	for _, key := range keys {
		if _, ok := i.values[string(key)]; ok {
			n++
		}
	}

	return n
}

func (i *InmemoryStore) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return len(i.values)
}

// Restore replaces the keyspace with the keys of a JSON object. Every
// value must be a JSON string or an object of the form {"b64": "..."}
// holding the base64 encoding of a binary value.
func (i *InmemoryStore) Restore(values []byte) error {
	if !gjson.ValidBytes(values) {
		return errors.New("restore data is not valid JSON")
	}

	doc := gjson.ParseBytes(values)
	if !doc.IsObject() {
		return errors.New("restore data must be a JSON object")
	}

	restored := make(map[string][]byte)

	var err error
	doc.ForEach(func(key, value gjson.Result) bool {
		decoded, decodeErr := restoreValue(value)
		if decodeErr != nil {
			err = fmt.Errorf("value of key '%s' %w", key.String(), decodeErr)
			return false
		}

		restored[key.String()] = decoded
		return true
	})

	if err != nil {
		return err
	}

	i.mu.Lock()
	i.values = restored
	i.mu.Unlock()

	return nil
}

// Backup returns the keyspace as a JSON object with keys in sorted order.
// Values that are not valid UTF-8 are written as {"b64": "..."} objects.
// Keys must be valid UTF-8.
func (i *InmemoryStore) Backup() ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	keys := make([]string, 0, len(i.values))
	for key := range i.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var err error
	doc := []byte("{}")

	for _, key := range keys {
		if !utf8.ValidString(key) {
			return nil, fmt.Errorf("Failed to backup key %q: %w", key, ErrBinaryKey)
		}

		value := i.values[key]
		if utf8.Valid(value) {
			doc, err = sjson.SetBytes(doc, objectKeyPath(key), string(value))
		} else {
			doc, err = sjson.SetBytes(doc, objectKeyPath(key)+".b64", base64.StdEncoding.EncodeToString(value))
		}
		if err != nil {
			return nil, fmt.Errorf("Failed to backup key '%s': %w", key, err)
		}
	}

	return doc, nil
}

func restoreValue(value gjson.Result) ([]byte, error) {
	switch {
	case value.Type == gjson.String:
		return []byte(value.String()), nil

	case value.IsObject():
		encoded := value.Get("b64")
		if encoded.Type != gjson.String {
			return nil, errors.New("must hold a b64 string")
		}

		decoded, err := base64.StdEncoding.DecodeString(encoded.String())
		if err != nil {
			return nil, fmt.Errorf("is not valid base64: %w", err)
		}
		return decoded, nil

	default:
		return nil, errors.New("must be a string")
	}
}

// objectKeyPath turns an arbitrary key into an sjson path naming exactly
// that object key. The leading ':' stops numeric keys being treated as
// array indexes.
func objectKeyPath(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 1)
	b.WriteByte(':')

	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '\\', '.', ':', '|', '#', '@', '*', '?', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteByte(key[i])
	}

	return b.String()
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

var _ Store = (*InmemoryStore)(nil)
