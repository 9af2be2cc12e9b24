package protocol

import (
	"fmt"
	"unicode/utf8"
)

// Command is a parsed client request. Verbs are matched case-insensitively
// and always reported lower-cased by Name.
type Command interface {
	Name() string
}

type GetCommand struct {
	Key []byte
}

type SetCommand struct {
	Key   []byte
	Value []byte
}

type DelCommand struct {
	Keys [][]byte
}

type ExistsCommand struct {
	Keys [][]byte
}

// PingCommand carries an optional message. A nil Message means PING was
// sent without one.
type PingCommand struct {
	Message []byte
}

type EchoCommand struct {
	Message []byte
}

// QuitCommand asks the server to reply OK and close the connection.
type QuitCommand struct{}

func (GetCommand) Name() string    { return "get" }
func (SetCommand) Name() string    { return "set" }
func (DelCommand) Name() string    { return "del" }
func (ExistsCommand) Name() string { return "exists" }
func (PingCommand) Name() string   { return "ping" }
func (EchoCommand) Name() string   { return "echo" }
func (QuitCommand) Name() string   { return "quit" }

// commandParser builds a Command from the arguments that follow the verb.
type commandParser func(args []RawPiece) (Command, error)

var commandParsers = map[string]commandParser{
	"get": func(args []RawPiece) (Command, error) {
		if len(args) == 0 {
			return nil, brokenProtocol("missing key for get")
		}
		if len(args) > 1 {
			return nil, wrongArity("get")
		}

		key, err := stringArg("get", args[0])
		if err != nil {
			return nil, err
		}

		return GetCommand{Key: key}, nil
	},

	"set": func(args []RawPiece) (Command, error) {
		if len(args) == 0 {
			return nil, brokenProtocol("missing key for set")
		}
		if len(args) == 1 {
			return nil, brokenProtocol("missing value for set")
		}
		if len(args) > 2 {
			return nil, wrongArity("set")
		}

		strs, err := stringArgs("set", args)
		if err != nil {
			return nil, err
		}

		return SetCommand{Key: strs[0], Value: strs[1]}, nil
	},

	"del": func(args []RawPiece) (Command, error) {
		if len(args) == 0 {
			return nil, brokenProtocol("missing key for del")
		}

		keys, err := stringArgs("del", args)
		if err != nil {
			return nil, err
		}

		return DelCommand{Keys: keys}, nil
	},

	"exists": func(args []RawPiece) (Command, error) {
		if len(args) == 0 {
			return nil, brokenProtocol("missing key for exists")
		}

		keys, err := stringArgs("exists", args)
		if err != nil {
			return nil, err
		}

		return ExistsCommand{Keys: keys}, nil
	},

	"ping": func(args []RawPiece) (Command, error) {
		switch len(args) {
		case 0:
			return PingCommand{}, nil

		case 1:
			msg, err := stringArg("ping", args[0])
			if err != nil {
				return nil, err
			}

			return PingCommand{Message: msg}, nil

		default:
			return nil, wrongArity("ping")
		}
	},

	"echo": func(args []RawPiece) (Command, error) {
		if len(args) == 0 {
			return nil, brokenProtocol("missing message for echo")
		}
		if len(args) > 1 {
			return nil, wrongArity("echo")
		}

		msg, err := stringArg("echo", args[0])
		if err != nil {
			return nil, err
		}

		return EchoCommand{Message: msg}, nil
	},

	"quit": func(args []RawPiece) (Command, error) {
		if len(args) > 0 {
			return nil, wrongArity("quit")
		}

		return QuitCommand{}, nil
	},
}

// ParseCommand converts one top-level piece into a Command. Simple and bulk
// strings are inline requests whose whitespace separated tokens become the
// arguments; arrays supply their elements directly.
func ParseCommand(p RawPiece) (Command, error) {
	var args []RawPiece

	switch v := p.(type) {
	case SimpleString:
		args = splitInline(v.Data)

	case BulkString:
		args = splitInline(v.Data)

	case Array:
		args = v

	default:
		return nil, brokenProtocol("request must be simple string, bulk string, or array")
	}

	if len(args) == 0 {
		return nil, brokenProtocol("empty lines given for command")
	}

	name, ok := Bytes(args[0])
	if !ok {
		return nil, brokenProtocol("command must be a string")
	}

	verb := lowerASCII(name)
	if !utf8.Valid(verb) {
		return nil, encodingFailure("command name is not valid utf-8")
	}

	parse, ok := commandParsers[string(verb)]
	if !ok {
		return nil, unsupported(string(verb))
	}

	return parse(args[1:])
}

// splitInline splits on runs of ASCII whitespace, never producing empty
// tokens.
func splitInline(data []byte) []RawPiece {
	var (
		pieces []RawPiece
		start  = -1
	)

	for i, c := range data {
		if isASCIISpace(c) {
			if start >= 0 {
				pieces = append(pieces, SimpleString{Data: copyBytes(data[start:i])})
				start = -1
			}
			continue
		}

		if start < 0 {
			start = i
		}
	}

	if start >= 0 {
		pieces = append(pieces, SimpleString{Data: copyBytes(data[start:])})
	}

	return pieces
}

func stringArg(verb string, p RawPiece) ([]byte, error) {
	data, ok := Bytes(p)
	if !ok {
		return nil, brokenProtocol(fmt.Sprintf("arguments for %s must be strings", verb))
	}

	return data, nil
}

func stringArgs(verb string, args []RawPiece) ([][]byte, error) {
	strs := make([][]byte, 0, len(args))

	for _, arg := range args {
		data, err := stringArg(verb, arg)
		if err != nil {
			return nil, err
		}

		strs = append(strs, data)
	}

	return strs, nil
}

func wrongArity(verb string) error {
	return brokenProtocol(fmt.Sprintf("wrong number of arguments for %s", verb))
}

func lowerASCII(src []byte) []byte {
	dst := make([]byte, len(src))

	for i, c := range src {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		dst[i] = c
	}

	return dst
}

func isASCIISpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	default:
		return false
	}
}

func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

var _ Command = GetCommand{}
var _ Command = SetCommand{}
var _ Command = DelCommand{}
var _ Command = ExistsCommand{}
var _ Command = PingCommand{}
var _ Command = EchoCommand{}
var _ Command = QuitCommand{}
