package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/luma/respd/client"
	"github.com/luma/respd/protocol"
)

var (
	callAddr    string
	callTimeout time.Duration
)

func init() {
	flags := CallCmd.PersistentFlags()

	flags.StringVarP(&callAddr, "addr", "a", "127.0.0.1:6379", "The host:port of the server")
	flags.DurationVar(&callTimeout, "timeout", 5*time.Second, "How long to wait for a reply")
}

var CallCmd = &cobra.Command{
	Use:   "call <command> [args...]",
	Short: "Send one command to a respd server and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()

		c := client.New(nil)
		if err := c.Connect(ctx, callAddr); err != nil {
			return err
		}
		defer c.Disconnect()

		req := make([][]byte, 0, len(args))
		for _, arg := range args {
			req = append(req, []byte(arg))
		}

		reply, err := c.Do(ctx, req...)
		if err != nil {
			return err
		}

		printPiece(cmd.OutOrStdout(), reply, "")
		return nil
	},
}

// printPiece writes reply the way redis-cli does.
func printPiece(w io.Writer, p protocol.RawPiece, indent string) {
	switch v := p.(type) {
	case protocol.SimpleString:
		fmt.Fprintf(w, "%s\n", v.Data)

	case protocol.ErrorString:
		line := protocol.Encode(v)
		fmt.Fprintf(w, "(error) %s\n", line[1:len(line)-len(protocol.Terminal)])

	case protocol.Integer:
		fmt.Fprintf(w, "(integer) %d\n", v)

	case protocol.BulkString:
		fmt.Fprintf(w, "%q\n", v.Data)

	case protocol.Null:
		fmt.Fprintln(w, "(nil)")

	case protocol.Array:
		if len(v) == 0 {
			fmt.Fprintln(w, "(empty array)")
			return
		}

		for i, elem := range v {
			prefix := fmt.Sprintf("%d) ", i+1)
			if i > 0 {
				fmt.Fprint(w, indent)
			}
			fmt.Fprint(w, prefix)
			printPiece(w, elem, indent+"   ")
		}
	}
}
