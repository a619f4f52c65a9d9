package output

import (
	"fmt"
	"io"

	"github.com/yndnr/respkv-go/pkg/resp"
)

// Format represents the output format.
type Format string

const (
	FormatRaw   Format = "raw"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formatter writes a reply frame.
type Formatter interface {
	Format(w io.Writer, reply resp.Frame) error
}

// ParseFormat validates a --output value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatRaw, FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatRaw, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want raw, table, json or yaml)", s)
	}
}

// NewFormatter creates a formatter for the given format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatTable:
		return &TableFormatter{}
	default:
		return &RawFormatter{}
	}
}

// ErrorValue is the structured form of an error reply.
type ErrorValue struct {
	Error string `json:"error" yaml:"error"`
}

// Value converts a frame to plain Go values: strings, int64, nil,
// ErrorValue and []any.
func Value(f resp.Frame) any {
	switch v := f.(type) {
	case resp.BulkString:
		return string(v)
	case resp.SimpleString:
		return string(v)
	case resp.Integer:
		return int64(v)
	case resp.Error:
		return ErrorValue{Error: string(v)}
	case resp.Array:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = Value(e)
		}
		return out
	default:
		return nil
	}
}
