package protocol

// This package implements decoding and encoding of RESP2, the protocol
// respd speaks with its clients, and turns decoded requests into commands.
//
// Every message is a sequence of lines (units), each terminated by `\r\n`.
// A leading unit starts with a type tag, a payload unit is raw bytes that
// follow a bulk string length.
//
//   ```
//     +<bytes>\r\n                simple string
//     -<kind>[ <detail>]\r\n      error
//     :<int>\r\n                  signed 64 bit integer
//     $<len>\r\n<bytes>\r\n       bulk string, `$0\r\n\r\n` is empty
//     $-1\r\n                     null
//     *<count>\r\n<pieces...>     array, `*0\r\n` is empty
//   ```
//
// === Requests
//
// Clients send an array of bulk strings:
//
//   ```
//     > *2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n
//     < $3\r\nbar\r\n
//   ```
//
// or an inline request, a single line of whitespace separated tokens:
//
//   ```
//     > GET foo\r\n
//     < $3\r\nbar\r\n
//   ```
//
// Command names are case insensitive.
//
// === Errors
//
// Malformed framing cannot be resynchronised, RESP has no marker to
// recover at. The server answers with a single error and closes:
//
//   ```
//     > $5\r\nabc\r\n
//     < -ERR Protocol error: length of payload mismatches\r\n
//   ```
//
