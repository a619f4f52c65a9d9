package redisserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/respkv-go/internal/server/config"
	"github.com/yndnr/respkv-go/internal/server/replication"
	"github.com/yndnr/respkv-go/internal/storage/memory"
	"github.com/yndnr/respkv-go/internal/telemetry/logger"
	"github.com/yndnr/respkv-go/internal/telemetry/metric"
	"github.com/yndnr/respkv-go/pkg/resp"
)

var (
	// ErrMalformedRequest is returned for a request that is not a non-empty
	// array of bulk strings. The connection must be closed.
	ErrMalformedRequest = fmt.Errorf("%w: request must be a non-empty array of bulk strings", resp.ErrProtocol)

	// ErrCloseConnection asks the caller to end the connection without a reply.
	ErrCloseConnection = errors.New("close connection")
)

const (
	errUnknownCommand       = resp.Error("Unknown command")
	errUnknownConfigCommand = resp.Error("Unknown CONFIG subcommand")
	errNotInteger           = resp.Error("ERR value is not an integer or out of range")
	errKeysPattern          = resp.Error("ERR KEYS pattern not supported")
)

// commandLabels bounds the metric label set to known commands.
var commandLabels = map[string]bool{
	"PING": true, "ECHO": true, "SET": true, "GET": true, "CONFIG": true,
	"KEYS": true, "INFO": true, "COMMAND": true, "REPLCONF": true,
}

// CommandHandler executes requests against the store.
type CommandHandler struct {
	store    *memory.Store
	params   *config.Params
	identity replication.Identity
	metrics  *metric.Registry
}

// NewCommandHandler creates a CommandHandler. metrics may be nil.
func NewCommandHandler(store *memory.Store, params *config.Params, identity replication.Identity, metrics *metric.Registry) *CommandHandler {
	return &CommandHandler{
		store:    store,
		params:   params,
		identity: identity,
		metrics:  metrics,
	}
}

// Handle executes one request and returns the reply. It returns
// ErrMalformedRequest for invalid requests and ErrCloseConnection when the
// connection should end silently.
func (h *CommandHandler) Handle(ctx context.Context, req resp.Frame) (resp.Frame, error) {
	elems, err := requestArgs(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	name := normalizeCommandName(elems[0])
	reply, err := h.dispatch(name, elems[1:])

	label := name
	if !commandLabels[name] {
		label = "unknown"
	}
	_, failed := reply.(resp.Error)
	h.metrics.ObserveCommand(label, failed, time.Since(start))

	if failed {
		logger.L(ctx).Debug("command failed", "command", name, "reply", string(reply.(resp.Error)))
	}
	return reply, err
}

func (h *CommandHandler) dispatch(name string, params [][]byte) (resp.Frame, error) {
	args := bindArgs(commandArgs[name], params)

	switch name {
	case "COMMAND":
		return nil, ErrCloseConnection
	case "PING":
		return resp.Pong, nil
	case "ECHO":
		msg, ok := args.Get("message")
		if !ok {
			return resp.Null{}, nil
		}
		return resp.BulkString(msg), nil
	case "SET":
		return h.handleSet(args), nil
	case "GET":
		return h.handleGet(args), nil
	case "CONFIG":
		return h.handleConfig(args), nil
	case "KEYS":
		return h.handleKeys(args), nil
	case "INFO":
		return resp.BulkString(h.identity.Info()), nil
	case "REPLCONF":
		return resp.OK, nil
	default:
		return errUnknownCommand, nil
	}
}

func (h *CommandHandler) handleSet(args Args) resp.Frame {
	key, okKey := args.String("key")
	// An absent value stores the key without one; GET reads it as Null.
	value, _ := args.Get("value")

	var expiresAt int64
	if px, ok := args.String("px"); ok {
		ms, err := strconv.ParseInt(px, 10, 64)
		if err != nil || ms < 0 {
			return errNotInteger
		}
		if ms == 0 {
			return resp.Error("ERR invalid expire time in 'set' command")
		}
		now := h.store.NowMs()
		if ms > math.MaxInt64-now {
			return errNotInteger
		}
		expiresAt = now + ms
	}

	if okKey {
		h.store.Set(key, value, expiresAt)
	}
	return resp.OK
}

func (h *CommandHandler) handleGet(args Args) resp.Frame {
	key, ok := args.String("key")
	if !ok {
		return resp.Null{}
	}
	value, ok := h.store.Get(key)
	if !ok {
		return resp.Null{}
	}
	return resp.BulkString(value)
}

func (h *CommandHandler) handleConfig(args Args) resp.Frame {
	action, _ := args.String("action")

	switch strings.ToUpper(action) {
	case "GET":
		param, ok := args.String("parameter")
		if !ok {
			return resp.Array{resp.Null{}, resp.Null{}}
		}
		value, ok := h.params.Get(param)
		if !ok {
			return resp.Array{resp.BulkString(param), resp.Null{}}
		}
		return resp.Array{resp.BulkString(param), resp.BulkString(value)}
	case "SET":
		param, ok := args.String("parameter")
		if !ok {
			return resp.OK
		}
		value, ok := args.String("value")
		if !ok {
			h.params.Delete(param)
			return resp.OK
		}
		h.params.Set(param, value)
		return resp.OK
	default:
		return errUnknownConfigCommand
	}
}

func (h *CommandHandler) handleKeys(args Args) resp.Frame {
	pattern, ok := args.String("pattern")
	if !ok {
		return resp.Array{}
	}
	if pattern != "*" {
		return errKeysPattern
	}
	keys := h.store.Keys()
	out := make(resp.Array, len(keys))
	for i, k := range keys {
		out[i] = resp.BulkString(k)
	}
	return out
}

// requestArgs validates req and returns its elements.
func requestArgs(req resp.Frame) ([][]byte, error) {
	arr, ok := req.(resp.Array)
	if !ok || len(arr) == 0 {
		return nil, ErrMalformedRequest
	}
	elems := make([][]byte, len(arr))
	for i, f := range arr {
		b, ok := f.(resp.BulkString)
		if !ok {
			return nil, ErrMalformedRequest
		}
		elems[i] = b
	}
	return elems, nil
}

func normalizeCommandName(b []byte) string {
	// Uppercase ASCII without allocating for already uppercased tokens.
	if bytes.ContainsAny(b, "abcdefghijklmnopqrstuvwxyz") {
		return strings.ToUpper(string(b))
	}
	return string(b)
}
