package command

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/respkv-go/internal/cli/output"
	"github.com/yndnr/respkv-go/pkg/resp"
)

// PingCommand returns the ping subcommand.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Check that the server answers, printing the round trip time",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"c"},
				Usage:   "number of pings",
				Value:   1,
			},
		},
		Action: pingAction,
	}
}

func pingAction(c *cli.Context) error {
	count := c.Int("count")
	if count < 1 {
		return fmt.Errorf("--count must be at least 1")
	}
	return withSession(c, func(ctx context.Context, s *Session) error {
		for i := 0; i < count; i++ {
			start := time.Now()
			reply, err := s.Do(ctx, "PING")
			if err != nil {
				return fmt.Errorf("PING: %w", err)
			}
			if !resp.Equal(reply, resp.Pong) {
				return fmt.Errorf("PING: unexpected reply %#v", reply)
			}
			fmt.Fprintf(c.App.Writer, "PONG from %s: time=%s\n", s.Flags.Server, time.Since(start).Round(time.Microsecond))
		}
		return nil
	})
}

// InfoCommand returns the info subcommand.
func InfoCommand() *cli.Command {
	return &cli.Command{
		Name:   "info",
		Usage:  "Show server replication info",
		Action: infoAction,
	}
}

func infoAction(c *cli.Context) error {
	return withSession(c, func(ctx context.Context, s *Session) error {
		reply, err := s.Do(ctx, "INFO")
		if err != nil {
			return fmt.Errorf("INFO: %w", err)
		}
		text, ok := reply.(resp.BulkString)
		if !ok {
			return s.Formatter.Format(c.App.Writer, reply)
		}
		return printInfo(c.App.Writer, s.Flags.Output, string(text))
	})
}

// printInfo writes INFO text verbatim in raw mode and as fields otherwise.
func printInfo(w io.Writer, format output.Format, text string) error {
	switch format {
	case output.FormatJSON, output.FormatYAML:
		tbl, ok := output.InfoTable(text)
		if !ok {
			return output.EncodeValue(w, format, text)
		}
		fields := make(map[string]string, len(tbl.Rows))
		for _, row := range tbl.Rows {
			fields[row[0]] = row[1]
		}
		return output.EncodeValue(w, format, fields)
	case output.FormatTable:
		if tbl, ok := output.InfoTable(text); ok {
			return tbl.Render(w)
		}
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
