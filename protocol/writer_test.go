package protocol_test

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/respd/protocol"
)

var _ = Describe("Writer", func() {
	Describe("Encode", func() {
		It("encodes simple strings", func() {
			Expect(string(protocol.Encode(protocol.SimpleString{Data: []byte("OK")}))).To(Equal("+OK\r\n"))
		})

		It("encodes errors with and without a detail", func() {
			Expect(string(protocol.Encode(protocol.NewError("ERR", "boom")))).To(Equal("-ERR boom\r\n"))
			Expect(string(protocol.Encode(protocol.ErrorString{Kind: []byte("WRONGTYPE")}))).To(Equal("-WRONGTYPE\r\n"))
		})

		It("encodes integers", func() {
			Expect(string(protocol.Encode(protocol.Integer(-12)))).To(Equal(":-12\r\n"))
		})

		It("encodes bulk strings", func() {
			Expect(string(protocol.Encode(protocol.BulkString{Data: []byte("foobar")}))).To(Equal("$6\r\nfoobar\r\n"))
			Expect(string(protocol.Encode(protocol.BulkString{}))).To(Equal("$0\r\n\r\n"))
		})

		It("encodes Null, and a nil piece, as a null bulk string", func() {
			Expect(string(protocol.Encode(protocol.Null{}))).To(Equal("$-1\r\n"))
			Expect(string(protocol.Encode(nil))).To(Equal("$-1\r\n"))
		})

		It("encodes arrays", func() {
			Expect(string(protocol.Encode(protocol.Array{}))).To(Equal("*0\r\n"))
			Expect(string(protocol.Encode(protocol.Array{
				protocol.BulkString{Data: []byte("get")},
				protocol.Array{protocol.Integer(1)},
			}))).To(Equal("*2\r\n$3\r\nget\r\n*1\r\n:1\r\n"))
		})
	})

	Describe("WriteOk", func() {
		It("writes +OK", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteOk(w)).To(Succeed())
			Expect(w.String()).To(Equal("+OK\r\n"))
		})
	})

	Describe("WriteError", func() {
		It("ends in \r\n", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteError(w, "errMessage")).To(Succeed())
			Expect(w.String()).To(HaveSuffix("\r\n"))
		})

		It("include the ERR response code and the error string", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteError(w, "errMessage")).To(Succeed())
			Expect(w.String()).To(Equal("-ERR errMessage\r\n"))
		})

		It("keeps the error on a single line", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteError(w, "two\r\nlines")).To(Succeed())
			Expect(w.String()).To(Equal("-ERR two  lines\r\n"))
		})
	})
})
