package replication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/yndnr/respkv-go/pkg/resp"
)

// ErrUnexpectedReply is returned when the primary answers a handshake step
// with something other than the expected status.
var ErrUnexpectedReply = errors.New("replication: unexpected reply")

type step struct {
	args []string
	want resp.SimpleString
}

// Handshake announces this server to the primary at primaryAddr: PING,
// REPLCONF listening-port and REPLCONF capa psync2. The connection is
// closed afterwards. ctx bounds the dial and every step.
func Handshake(ctx context.Context, primaryAddr string, listeningPort int, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("primary", primaryAddr)

	client, err := resp.Dial(ctx, primaryAddr)
	if err != nil {
		return fmt.Errorf("dial primary: %w", err)
	}
	defer client.Close()

	steps := []step{
		{args: []string{"PING"}, want: resp.Pong},
		{args: []string{"REPLCONF", "listening-port", strconv.Itoa(listeningPort)}, want: resp.OK},
		{args: []string{"REPLCONF", "capa", "psync2"}, want: resp.OK},
	}
	for _, s := range steps {
		reply, err := client.Do(ctx, s.args...)
		if err != nil {
			return fmt.Errorf("%s: %w", s.args[0], err)
		}
		if got, ok := reply.(resp.SimpleString); !ok || got != s.want {
			return fmt.Errorf("%w to %v: %#v", ErrUnexpectedReply, s.args, reply)
		}
		logger.Debug("handshake step done", "command", s.args)
	}

	logger.Info("handshake with primary complete")
	return nil
}
