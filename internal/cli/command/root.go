package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/respkv-go/internal/cli/output"
	"github.com/yndnr/respkv-go/internal/cli/repl"
	"github.com/yndnr/respkv-go/internal/infra/buildinfo"
	"github.com/yndnr/respkv-go/pkg/resp"
)

// DefaultServer is the server address used when --server is not given.
const DefaultServer = "127.0.0.1:6379"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:      "respkv-cli",
		Usage:     "Send commands to a respkv server",
		UsageText: "respkv-cli [global options] [command [args...]]",
		Version:   buildinfo.String(),
		Flags:     globalFlags(),
		Commands: []*cli.Command{
			PingCommand(),
			InfoCommand(),
		},
		Before: func(c *cli.Context) error {
			_, err := output.ParseFormat(c.String("output"))
			return err
		},
		Action: rootAction,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "server address (host:port)",
			EnvVars: []string{"RESPKV_SERVER"},
			Value:   DefaultServer,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: raw, table, json, yaml",
			EnvVars: []string{"RESPKV_OUTPUT"},
			Value:   string(output.FormatRaw),
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "dial and per-command timeout",
			Value: 5 * time.Second,
		},
		&cli.StringFlag{
			Name:  "history",
			Usage: "interactive history file (empty disables it)",
			Value: repl.DefaultHistoryFile(),
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server  string
	Output  output.Format
	Timeout time.Duration
	History string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		format = output.FormatRaw
	}
	return &GlobalFlags{
		Server:  c.String("server"),
		Output:  format,
		Timeout: c.Duration("timeout"),
		History: c.String("history"),
	}
}

// Session is one connection plus the settings to use it.
type Session struct {
	Client    *resp.Client
	Formatter output.Formatter
	Flags     *GlobalFlags
}

// Do sends one command bounded by the --timeout flag.
func (s *Session) Do(ctx context.Context, args ...string) (resp.Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Flags.Timeout)
	defer cancel()
	return s.Client.Do(ctx, args...)
}

// withSession dials the server, runs fn and closes the connection.
func withSession(c *cli.Context, fn func(ctx context.Context, s *Session) error) error {
	flags := ParseGlobalFlags(c)
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	dialCtx, cancel := context.WithTimeout(ctx, flags.Timeout)
	defer cancel()
	client, err := resp.Dial(dialCtx, flags.Server)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", flags.Server, err)
	}
	defer client.Close()

	return fn(ctx, &Session{
		Client:    client,
		Formatter: output.NewFormatter(flags.Output),
		Flags:     flags,
	})
}

func rootAction(c *cli.Context) error {
	args := c.Args().Slice()
	return withSession(c, func(ctx context.Context, s *Session) error {
		if len(args) == 0 {
			r := repl.New(s.Flags.Server, func(ctx context.Context, args []string) (resp.Frame, error) {
				return s.Do(ctx, args...)
			}, s.Formatter,
				repl.WithIO(os.Stdin, c.App.Writer),
				repl.WithHistory(repl.NewHistory(s.Flags.History)),
			)
			return r.Run(ctx)
		}

		reply, err := s.Do(ctx, args...)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		return s.Formatter.Format(c.App.Writer, reply)
	})
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
