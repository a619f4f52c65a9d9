package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yndnr/respkv-go/internal/cli/output"
	"github.com/yndnr/respkv-go/pkg/resp"
)

// Executor sends one command and returns the reply.
type Executor func(ctx context.Context, args []string) (resp.Frame, error)

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	prompt    string
	exec      Executor
	formatter output.Formatter
	completer *Completer
	history   *History
}

// Option configures a REPL.
type Option func(*REPL)

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(r *REPL) {
		r.input = in
		r.output = out
	}
}

// WithHistory sets the history store.
func WithHistory(h *History) Option {
	return func(r *REPL) { r.history = h }
}

// New creates a REPL that prompts with "<addr>> ".
func New(addr string, exec Executor, formatter output.Formatter, opts ...Option) *REPL {
	r := &REPL{
		input:     os.Stdin,
		output:    os.Stdout,
		prompt:    addr + "> ",
		exec:      exec,
		formatter: formatter,
		completer: NewCompleter(),
		history:   NewHistory(""),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads lines until EOF, exit or quit, or until ctx is cancelled.
// Command errors are printed and the loop continues; a transport error
// ends it.
func (r *REPL) Run(ctx context.Context) error {
	if err := r.history.Load(); err != nil {
		fmt.Fprintf(r.output, "warning: load history: %v\n", err)
	}
	defer func() {
		if err := r.history.Save(); err != nil {
			fmt.Fprintf(r.output, "warning: save history: %v\n", err)
		}
	}()

	reader := bufio.NewReader(r.input)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(r.output, r.prompt)

		line, err := reader.ReadString('\n')
		if err == io.EOF && line == "" {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil && err != io.EOF {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.history.Add(line)

		args, splitErr := SplitArgs(line)
		if splitErr != nil {
			fmt.Fprintf(r.output, "Error: %v\n", splitErr)
			continue
		}

		switch strings.ToLower(args[0]) {
		case "exit", "quit":
			return nil
		case "help":
			prefix := ""
			if len(args) > 1 {
				prefix = args[1]
			}
			fmt.Fprintln(r.output, strings.Join(r.completer.Complete(prefix), "\n"))
			continue
		}

		if err := r.execute(ctx, args); err != nil {
			return err
		}
	}
}

func (r *REPL) execute(ctx context.Context, args []string) error {
	reply, err := r.exec(ctx, args)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return r.formatter.Format(r.output, reply)
}
