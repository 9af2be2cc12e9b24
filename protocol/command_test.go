package protocol_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/luma/respd/protocol"
)

func bulk(s string) protocol.BulkString {
	return protocol.BulkString{Data: []byte(s)}
}

func parseRequest(data string) (protocol.Command, error) {
	piece, err := decoderFor(data).DecodeRequest()
	Expect(err).To(Succeed())

	return protocol.ParseCommand(piece)
}

var _ = Describe("ParseCommand()", func() {
	It("parses the array form", func() {
		Expect(parseRequest("*2\r\n$3\r\nget\r\n$3\r\nfoo\r\n")).To(Equal(protocol.GetCommand{Key: []byte("foo")}))
	})

	It("parses a simple string as an inline request", func() {
		Expect(parseRequest("+get foo\r\n")).To(Equal(protocol.GetCommand{Key: []byte("foo")}))
	})

	It("parses a bulk string as an inline request", func() {
		Expect(parseRequest("$8\r\nget  foo\r\n")).To(Equal(protocol.GetCommand{Key: []byte("foo")}))
	})

	It("parses an untagged inline request", func() {
		Expect(parseRequest("get\tfoo \r\n")).To(Equal(protocol.GetCommand{Key: []byte("foo")}))
	})

	table.DescribeTable("matches verbs case-insensitively",
		func(verb string) {
			Expect(protocol.ParseCommand(protocol.Array{bulk(verb), bulk("foo")})).
				To(Equal(protocol.GetCommand{Key: []byte("foo")}))
		},
		table.Entry("upper", "GET"),
		table.Entry("lower", "get"),
		table.Entry("mixed", "GeT"),
	)

	It("rejects pieces that are not strings or arrays", func() {
		_, err := parseRequest("$-1\r\n")
		Expect(err).To(MatchError(ContainSubstring("request must be")))
		Expect(errors.Is(err, protocol.ErrBrokenProtocol)).To(BeTrue())

		_, err = protocol.ParseCommand(protocol.Integer(1))
		Expect(errors.Is(err, protocol.ErrBrokenProtocol)).To(BeTrue())
	})

	It("rejects an empty request", func() {
		_, err := parseRequest("*0\r\n")
		Expect(err).To(MatchError(ContainSubstring("empty lines given for command")))

		_, err = parseRequest("+   \r\n")
		Expect(errors.Is(err, protocol.ErrBrokenProtocol)).To(BeTrue())
	})

	It("rejects a verb that is not a string", func() {
		_, err := protocol.ParseCommand(protocol.Array{protocol.Integer(1)})
		Expect(err).To(MatchError(ContainSubstring("command must be a string")))
	})

	It("reports unknown verbs as unsupported", func() {
		_, err := parseRequest("*1\r\n$5\r\nHELLO\r\n")
		Expect(errors.Is(err, protocol.ErrUnsupported)).To(BeTrue())
		Expect(err).To(MatchError(ContainSubstring("hello")))
	})

	It("reports verbs that are not utf-8 as an encoding failure", func() {
		_, err := protocol.ParseCommand(protocol.Array{bulk("g\xffet")})
		Expect(errors.Is(err, protocol.ErrEncoding)).To(BeTrue())
	})

	Describe("get", func() {
		It("requires a key", func() {
			_, err := parseRequest("+get\r\n")
			Expect(err).To(MatchError(ContainSubstring("missing key for get")))
			Expect(errors.Is(err, protocol.ErrBrokenProtocol)).To(BeTrue())
		})

		It("rejects extra arguments", func() {
			_, err := parseRequest("+get a b\r\n")
			Expect(errors.Is(err, protocol.ErrBrokenProtocol)).To(BeTrue())
		})

		It("requires a string key", func() {
			_, err := protocol.ParseCommand(protocol.Array{bulk("get"), protocol.Array{}})
			Expect(errors.Is(err, protocol.ErrBrokenProtocol)).To(BeTrue())
		})
	})

	Describe("set", func() {
		It("parses a key and value", func() {
			Expect(protocol.ParseCommand(protocol.Array{bulk("SET"), bulk("k"), bulk("v w")})).
				To(Equal(protocol.SetCommand{Key: []byte("k"), Value: []byte("v w")}))
		})

		It("requires a value", func() {
			_, err := parseRequest("+set k\r\n")
			Expect(err).To(MatchError(ContainSubstring("missing value for set")))
		})
	})

	Describe("del and exists", func() {
		It("take one or more keys", func() {
			Expect(parseRequest("+del a b\r\n")).To(Equal(protocol.DelCommand{Keys: [][]byte{[]byte("a"), []byte("b")}}))
			Expect(parseRequest("+EXISTS a\r\n")).To(Equal(protocol.ExistsCommand{Keys: [][]byte{[]byte("a")}}))

			_, err := parseRequest("+del\r\n")
			Expect(errors.Is(err, protocol.ErrBrokenProtocol)).To(BeTrue())
		})
	})

	Describe("ping, echo and quit", func() {
		It("parses ping with and without a message", func() {
			Expect(parseRequest("+PING\r\n")).To(Equal(protocol.PingCommand{}))
			Expect(parseRequest("+ping hi\r\n")).To(Equal(protocol.PingCommand{Message: []byte("hi")}))
		})

		It("parses echo", func() {
			Expect(parseRequest("+echo hi\r\n")).To(Equal(protocol.EchoCommand{Message: []byte("hi")}))

			_, err := parseRequest("+echo\r\n")
			Expect(errors.Is(err, protocol.ErrBrokenProtocol)).To(BeTrue())
		})

		It("parses quit", func() {
			cmd, err := parseRequest("+QUIT\r\n")
			Expect(err).To(Succeed())
			Expect(cmd).To(Equal(protocol.QuitCommand{}))
			Expect(cmd.Name()).To(Equal("quit"))
		})
	})
})
