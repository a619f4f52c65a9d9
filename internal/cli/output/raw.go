package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/yndnr/respkv-go/pkg/resp"
)

// RawFormatter prints replies the way redis-cli does on a terminal.
type RawFormatter struct{}

// Format writes reply followed by a newline.
func (f *RawFormatter) Format(w io.Writer, reply resp.Frame) error {
	var b strings.Builder
	writeRaw(&b, reply, "")
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

func writeRaw(b *strings.Builder, f resp.Frame, indent string) {
	switch v := f.(type) {
	case resp.BulkString:
		fmt.Fprintf(b, "%q", string(v))
	case resp.SimpleString:
		b.WriteString(string(v))
	case resp.Integer:
		fmt.Fprintf(b, "(integer) %d", int64(v))
	case resp.Error:
		fmt.Fprintf(b, "(error) %s", string(v))
	case resp.Array:
		if len(v) == 0 {
			b.WriteString("(empty array)")
			return
		}
		width := len(fmt.Sprint(len(v)))
		for i, e := range v {
			if i > 0 {
				b.WriteByte('\n')
				b.WriteString(indent)
			}
			prefix := fmt.Sprintf("%*d) ", width, i+1)
			b.WriteString(prefix)
			writeRaw(b, e, indent+strings.Repeat(" ", len(prefix)))
		}
	default:
		b.WriteString("(nil)")
	}
}
