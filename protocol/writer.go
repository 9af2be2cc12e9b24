package protocol

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

var (
	OkTerminal = []byte("+OK\r\n")
	Terminal   = crlf
)

// Encode returns the wire form of p.
func Encode(p RawPiece) []byte {
	return AppendPiece(nil, p)
}

// AppendPiece appends the wire form of p to b. A nil piece is encoded as
// Null.
func AppendPiece(b []byte, p RawPiece) []byte {
	switch v := p.(type) {
	case nil, Null:
		return append(b, "$-1\r\n"...)

	case SimpleString:
		b = append(b, TagSimpleString)
		b = append(b, v.Data...)

	case ErrorString:
		b = append(b, TagError)
		b = append(b, v.Kind...)
		if len(v.Detail) > 0 {
			b = append(b, ' ')
			b = append(b, v.Detail...)
		}

	case Integer:
		b = append(b, TagInteger)
		b = strconv.AppendInt(b, int64(v), 10)

	case BulkString:
		b = append(b, TagBulkString)
		b = strconv.AppendInt(b, int64(len(v.Data)), 10)
		b = append(b, Terminal...)
		b = append(b, v.Data...)

	case Array:
		b = append(b, TagArray)
		b = strconv.AppendInt(b, int64(len(v)), 10)
		b = append(b, Terminal...)
		for _, elem := range v {
			b = AppendPiece(b, elem)
		}

		return b

	default:
		panic(fmt.Sprintf("protocol: cannot encode %T", p))
	}

	return append(b, Terminal...)
}

func WritePiece(w io.Writer, p RawPiece) error {
	_, err := w.Write(Encode(p))
	return err
}

func WriteOk(w io.Writer) error {
	_, err := w.Write(OkTerminal)
	return err
}

// WriteError writes `-ERR <errMsg>`. Line breaks in errMsg are replaced so
// the reply stays a single unit.
func WriteError(w io.Writer, errMsg string) error {
	return WritePiece(w, ErrorReply(errMsg))
}

// ErrorReply builds the generic `ERR` error piece.
func ErrorReply(errMsg string) ErrorString {
	msg := bytes.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, []byte(errMsg))

	return ErrorString{Kind: []byte("ERR"), Detail: msg}
}
