package protocol

// Type tags, one per piece kind on the wire.
const (
	TagSimpleString byte = '+'
	TagError        byte = '-'
	TagInteger      byte = ':'
	TagBulkString   byte = '$'
	TagArray        byte = '*'
)

// RawPiece is one decoded protocol value. The concrete types are
// SimpleString, ErrorString, Integer, BulkString, Array and Null.
type RawPiece interface {
	// Tag returns the type tag the piece is encoded with.
	Tag() byte

	piece()
}

type SimpleString struct {
	Data []byte
}

// ErrorString is an error reply, `-<kind>[ <detail>]`.
type ErrorString struct {
	Kind   []byte
	Detail []byte
}

type Integer int64

type BulkString struct {
	Data []byte
}

// Array owns its elements.
type Array []RawPiece

// Null is the null bulk string, `$-1`.
type Null struct{}

func (SimpleString) Tag() byte { return TagSimpleString }
func (ErrorString) Tag() byte  { return TagError }
func (Integer) Tag() byte      { return TagInteger }
func (BulkString) Tag() byte   { return TagBulkString }
func (Array) Tag() byte        { return TagArray }
func (Null) Tag() byte         { return TagBulkString }

func (SimpleString) piece() {}
func (ErrorString) piece()  {}
func (Integer) piece()      {}
func (BulkString) piece()   {}
func (Array) piece()        {}
func (Null) piece()         {}

// Bytes returns the payload of a simple or bulk string. ok is false for
// every other piece.
func Bytes(p RawPiece) (data []byte, ok bool) {
	switch s := p.(type) {
	case SimpleString:
		return s.Data, true
	case BulkString:
		return s.Data, true
	default:
		return nil, false
	}
}

// NewError builds an error piece from a kind and a human readable detail.
func NewError(kind, detail string) ErrorString {
	return ErrorString{Kind: []byte(kind), Detail: []byte(detail)}
}

var (
	OK   = SimpleString{Data: []byte("OK")}
	Pong = SimpleString{Data: []byte("PONG")}
)

var _ RawPiece = SimpleString{}
var _ RawPiece = ErrorString{}
var _ RawPiece = Integer(0)
var _ RawPiece = BulkString{}
var _ RawPiece = Array{}
var _ RawPiece = Null{}
