package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
)

const (
	// DefaultMaxDepth bounds how deeply arrays may nest.
	DefaultMaxDepth = 32

	// DefaultMaxUnitSize bounds the size of a single line on the wire,
	// including bulk string payloads.
	DefaultMaxUnitSize = 64 * 1024 * 1024

	// maxPrealloc caps how many array slots are reserved up front. The
	// declared count comes from the client and cannot be trusted.
	maxPrealloc = 1024
)

var crlf = []byte("\r\n")

type DecoderOptions struct {
	// MaxDepth is the maximum array nesting depth. Zero means DefaultMaxDepth.
	MaxDepth int

	// MaxUnitSize is the maximum length of one unit. Zero means
	// DefaultMaxUnitSize.
	MaxUnitSize int
}

// unit is one physical line read from the stream. Leading units carry a
// type tag, payload units have tag 0.
type unit struct {
	tag  byte
	data []byte
}

func (u unit) leading() bool {
	return u.tag != 0
}

// Decoder reads RESP2 pieces from a byte stream. Bytes that arrive across
// several reads are accumulated until a unit is complete, so a Decoder must
// be kept for the whole life of the stream.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	r   *bufio.Reader
	buf []byte

	maxDepth    int
	maxUnitSize int
}

func NewDecoder(r io.Reader, options DecoderOptions) *Decoder {
	maxDepth := options.MaxDepth
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}

	maxUnitSize := options.MaxUnitSize
	if maxUnitSize < 1 {
		maxUnitSize = DefaultMaxUnitSize
	}

	return &Decoder{
		r:           bufio.NewReader(r),
		buf:         make([]byte, 0, 512),
		maxDepth:    maxDepth,
		maxUnitSize: maxUnitSize,
	}
}

// Decode reads exactly one piece. A clean close of the stream before any
// byte of the piece arrived is reported as ErrEndOfStream.
func (d *Decoder) Decode() (RawPiece, error) {
	u, err := d.readUnit()
	if err != nil {
		return nil, err
	}

	if !u.leading() {
		return nil, brokenProtocol("missing leading unit")
	}

	return d.parse(u, 0)
}

// DecodeRequest is like Decode but also accepts an inline request: an
// untagged line at the top level is returned as a SimpleString holding the
// whole line.
func (d *Decoder) DecodeRequest() (RawPiece, error) {
	u, err := d.readUnit()
	if err != nil {
		return nil, err
	}

	if !u.leading() {
		return SimpleString{Data: u.data}, nil
	}

	return d.parse(u, 0)
}

// next reads a piece nested inside another one.
func (d *Decoder) next(depth int) (RawPiece, error) {
	u, err := d.readUnit()
	if err != nil {
		return nil, truncated(err)
	}

	if !u.leading() {
		return nil, brokenProtocol("missing leading unit")
	}

	return d.parse(u, depth)
}

func (d *Decoder) parse(u unit, depth int) (RawPiece, error) {
	switch u.tag {
	case TagSimpleString:
		return SimpleString{Data: u.data}, nil

	case TagError:
		// -<kind> <detail>
		if i := bytes.IndexByte(u.data, ' '); i >= 0 {
			return ErrorString{Kind: u.data[:i], Detail: u.data[i+1:]}, nil
		}

		return ErrorString{Kind: u.data, Detail: u.data[len(u.data):]}, nil

	case TagInteger:
		i, err := parseInt(u.data)
		if err != nil {
			return nil, brokenProtocol("invalid integer")
		}

		return Integer(i), nil

	case TagBulkString:
		return d.parseBulkString(u)

	case TagArray:
		return d.parseArray(u, depth)

	default:
		// readUnit only produces the tags above
		panic("protocol: unknown unit tag " + strconv.Quote(string(u.tag)))
	}
}

func (d *Decoder) parseBulkString(u unit) (RawPiece, error) {
	n, err := parseInt(u.data)
	if err != nil {
		return nil, brokenProtocol("invalid length of bulk string")
	}

	switch {
	case n == -1:
		return Null{}, nil

	case n < 0:
		return nil, brokenProtocol("invalid length of bulk string")

	case n > int64(d.maxUnitSize):
		return nil, brokenProtocol("bulk string is too long")
	}

	payload, err := d.readUnit()
	if err != nil {
		return nil, truncated(err)
	}

	// The payload line is raw bytes, even when it happens to start with a
	// tag byte, so that any bulk string the encoder writes (such as "+x")
	// decodes back to itself. Only a line that also has the wrong length is
	// reported as a missing payload.
	data := payload.data
	if payload.leading() {
		data = append([]byte{payload.tag}, payload.data...)
	}

	if int64(len(data)) != n {
		if payload.leading() {
			return nil, brokenProtocol("missing payload unit")
		}

		return nil, brokenProtocol("length of payload mismatches")
	}

	return BulkString{Data: data}, nil
}

func (d *Decoder) parseArray(u unit, depth int) (RawPiece, error) {
	n, err := parseInt(u.data)
	if err != nil || n < 0 {
		return nil, brokenProtocol("invalid length of array")
	}

	if n == 0 {
		return Array{}, nil
	}

	if depth >= d.maxDepth {
		return nil, brokenProtocol("array nesting is too deep")
	}

	prealloc := n
	if prealloc > maxPrealloc {
		prealloc = maxPrealloc
	}

	arr := make(Array, 0, prealloc)
	for i := int64(0); i < n; i++ {
		piece, err := d.next(depth + 1)
		if err != nil {
			return nil, err
		}

		arr = append(arr, piece)
	}

	return arr, nil
}

// readUnit accumulates bytes until the buffer ends in CRLF. A stream that
// ends with an unterminated line yields that line as the final unit.
func (d *Decoder) readUnit() (unit, error) {
	d.buf = d.buf[:0]

	for {
		chunk, err := d.r.ReadSlice('\n')
		d.buf = appendWithoutNUL(d.buf, chunk)

		if len(d.buf) > d.maxUnitSize+len(crlf) {
			return unit{}, brokenProtocol("unit is too long")
		}

		switch {
		case err == nil:
			if bytes.HasSuffix(d.buf, crlf) {
				return d.classify(d.buf[:len(d.buf)-len(crlf)]), nil
			}

		case errors.Is(err, bufio.ErrBufferFull):
			// Line longer than the reader's buffer, keep going

		case errors.Is(err, io.EOF):
			if len(d.buf) == 0 {
				return unit{}, ErrEndOfStream
			}

			return d.classify(d.buf), nil

		default:
			return unit{}, &IOError{Err: err}
		}
	}
}

// classify copies line out of the shared buffer and splits off the tag.
func (d *Decoder) classify(line []byte) unit {
	var u unit

	if len(line) > 0 {
		switch line[0] {
		case TagSimpleString, TagError, TagInteger, TagBulkString, TagArray:
			u.tag = line[0]
			line = line[1:]
		}
	}

	u.data = make([]byte, len(line))
	copy(u.data, line)

	return u
}

// appendWithoutNUL strips embedded NUL bytes. Some legacy clients pad
// inline requests with them.
func appendWithoutNUL(dst, src []byte) []byte {
	for len(src) > 0 {
		i := bytes.IndexByte(src, 0)
		if i < 0 {
			return append(dst, src...)
		}

		dst = append(dst, src[:i]...)
		src = src[i+1:]
	}

	return dst
}

func parseInt(data []byte) (int64, error) {
	return strconv.ParseInt(string(data), 10, 64)
}

// truncated converts a clean end of stream in the middle of a frame into
// a protocol error.
func truncated(err error) error {
	if errors.Is(err, ErrEndOfStream) {
		return brokenProtocol("truncated frame")
	}

	return err
}
