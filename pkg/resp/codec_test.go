package resp

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"runtime"
	"strings"
	"testing"
)

func newTestCodec(input string) (*Codec, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return NewCodec(strings.NewReader(input), out), out
}

// ============================================================
// Receive Tests
// ============================================================

func TestCodec_Receive(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		n       int
		want    string
		wantErr error
	}{
		{name: "line", input: "+OK\r\n", n: -1, want: "+OK"},
		{name: "fixed length", input: "hello\r\n", n: 5, want: "hello"},
		{name: "fixed length with embedded CRLF", input: "a\r\nb\r\n", n: 4, want: "a\r\nb"},
		{name: "zero length", input: "\r\n", n: 0, want: ""},
		{name: "beyond preallocation", input: strings.Repeat("x", 3*bulkPrealloc) + "\r\n", n: 3 * bulkPrealloc, want: strings.Repeat("x", 3*bulkPrealloc)},
		{name: "truncated beyond preallocation", input: strings.Repeat("x", bulkPrealloc), n: 3 * bulkPrealloc, wantErr: io.ErrUnexpectedEOF},
		{name: "clean EOF", input: "", n: -1, wantErr: io.EOF},
		{name: "truncated line", input: "+OK", n: -1, wantErr: io.ErrUnexpectedEOF},
		{name: "truncated payload", input: "hel", n: 5, wantErr: io.ErrUnexpectedEOF},
		{name: "bad terminator", input: "helloXX", n: 5, wantErr: ErrProtocol},
		{name: "missing CR", input: "+OK\n", n: -1, wantErr: ErrProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCodec(tt.input)
			got, err := c.Receive(tt.n)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Receive() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Receive() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Receive() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCodec_Receive_LineLimit(t *testing.T) {
	c, _ := newTestCodec("+" + strings.Repeat("x", MaxLineLen+10) + "\r\n")
	if _, err := c.Receive(-1); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("Receive() error = %v, want ErrLimitExceeded", err)
	}
}

func TestCodec_Receive_BulkLimit(t *testing.T) {
	c, _ := newTestCodec("ab\r\n")
	if _, err := c.Receive(MaxBulkLen + 1); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("Receive() error = %v, want ErrLimitExceeded", err)
	}
}

func TestCodec_ReadFrame_HugeDeclaredLength(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "bulk", input: "*1\r\n$536870000\r\nab"},
		{name: "array", input: "*1048576\r\n$1\r\na\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCodec(tt.input)

			var before, after runtime.MemStats
			runtime.GC()
			runtime.ReadMemStats(&before)
			_, err := c.ReadFrame()
			runtime.ReadMemStats(&after)

			if !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Fatalf("ReadFrame() error = %v, want io.ErrUnexpectedEOF", err)
			}
			if alloc := after.TotalAlloc - before.TotalAlloc; alloc > 1<<20 {
				t.Errorf("ReadFrame() allocated %d bytes for a truncated frame, want < 1MiB", alloc)
			}
		})
	}
}

// ============================================================
// Deserialize Tests
// ============================================================

func TestCodec_ReadFrame(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Frame
	}{
		{name: "simple string", input: "+PONG\r\n", want: SimpleString("PONG")},
		{name: "error", input: "-Unknown command\r\n", want: Error("Unknown command")},
		{name: "integer", input: ":-42\r\n", want: Integer(-42)},
		{name: "bulk", input: "$3\r\nfoo\r\n", want: BulkString("foo")},
		{name: "empty bulk", input: "$0\r\n\r\n", want: BulkString("")},
		{name: "null bulk", input: "$-1\r\n", want: Null{}},
		{name: "null array", input: "*-1\r\n", want: Null{}},
		{name: "empty array", input: "*0\r\n", want: Array{}},
		{
			name:  "command",
			input: "*2\r\n$4\r\nECHO\r\n$2\r\nhi\r\n",
			want:  Command("ECHO", "hi"),
		},
		{
			name:  "nested",
			input: "*2\r\n*1\r\n:1\r\n$-1\r\n",
			want:  Array{Array{Integer(1)}, Null{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCodec(tt.input)
			got, err := c.ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame() error = %v", err)
			}
			if !Equal(got, tt.want) {
				t.Errorf("ReadFrame() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestCodec_ReadFrame_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "unknown tag", input: "?what\r\n", wantErr: ErrProtocol},
		{name: "empty line", input: "\r\n", wantErr: ErrProtocol},
		{name: "bad integer", input: ":abc\r\n", wantErr: ErrProtocol},
		{name: "bad bulk length", input: "$x\r\n", wantErr: ErrProtocol},
		{name: "negative bulk length", input: "$-2\r\n", wantErr: ErrProtocol},
		{name: "array too large", input: "*99999999\r\n", wantErr: ErrLimitExceeded},
		{name: "truncated array", input: "*2\r\n$1\r\na\r\n", wantErr: io.ErrUnexpectedEOF},
		{name: "truncated bulk", input: "$10\r\nabc", wantErr: io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCodec(tt.input)
			if _, err := c.ReadFrame(); !errors.Is(err, tt.wantErr) {
				t.Errorf("ReadFrame() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCodec_ReadFrame_DepthLimit(t *testing.T) {
	input := strings.Repeat("*1\r\n", MaxDepth+1) + ":1\r\n"
	c, _ := newTestCodec(input)
	if _, err := c.ReadFrame(); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("ReadFrame() error = %v, want ErrLimitExceeded", err)
	}
}

func TestCodec_ReadFrame_Pipelined(t *testing.T) {
	c, _ := newTestCodec("*1\r\n$4\r\nPING\r\n*1\r\n$4\r\nPING\r\n")
	for i := 0; i < 2; i++ {
		f, err := c.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame(%d) error = %v", i, err)
		}
		if !Equal(f, Command("PING")) {
			t.Errorf("ReadFrame(%d) = %#v", i, f)
		}
	}
	if _, err := c.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("ReadFrame() after input error = %v, want io.EOF", err)
	}
}

// ============================================================
// Serialize Tests
// ============================================================

func TestSerialize(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  string
	}{
		{name: "simple", frame: OK, want: "+OK\r\n"},
		{name: "error", frame: Error("Unknown command"), want: "-Unknown command\r\n"},
		{name: "integer", frame: Integer(7), want: ":7\r\n"},
		{name: "bulk", frame: BulkString("bar"), want: "$3\r\nbar\r\n"},
		{name: "null", frame: Null{}, want: "$-1\r\n"},
		{
			name:  "array",
			frame: Array{BulkString("dir"), Null{}},
			want:  "*2\r\n$3\r\ndir\r\n$-1\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Serialize(tt.frame)
			if err != nil {
				t.Fatalf("Serialize() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Serialize() = %q, want %q", got, tt.want)
			}
		})
	}
}

type bogusFrame struct{ Null }

func TestSerialize_Errors(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
	}{
		{name: "nil", frame: nil},
		{name: "foreign type", frame: bogusFrame{}},
		{name: "simple with CRLF", frame: SimpleString("a\r\nb")},
		{name: "nested foreign type", frame: Array{BulkString("x"), bogusFrame{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Serialize(tt.frame); !errors.Is(err, ErrProtocol) {
				t.Errorf("Serialize() error = %v, want ErrProtocol", err)
			}
		})
	}
}

// ============================================================
// Round Trip
// ============================================================

func TestRoundTrip(t *testing.T) {
	frames := []Frame{
		Null{},
		BulkString(""),
		BulkString("\x00\xff\r\n$3\r\n*1"),
		SimpleString("PONG"),
		Error("ERR boom"),
		Integer(-9223372036854775808),
		Array{},
		Array{BulkString("SET"), BulkString("k"), BulkString("v\r\n")},
		Array{Array{Array{Integer(1), Null{}}}, Error("e"), BulkString("")},
	}

	for i, f := range frames {
		raw, err := Serialize(f)
		if err != nil {
			t.Fatalf("frame %d: Serialize() error = %v", i, err)
		}
		c := NewCodec(bufio.NewReader(bytes.NewReader(raw)), io.Discard)
		got, err := c.ReadFrame()
		if err != nil {
			t.Fatalf("frame %d: ReadFrame() error = %v", i, err)
		}
		if !Equal(got, f) {
			t.Errorf("frame %d: round trip = %#v, want %#v", i, got, f)
		}
	}
}

func TestCodec_Send(t *testing.T) {
	c, out := newTestCodec("")
	if err := c.Write(Pong); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("Write() flushed early: %q", out.String())
	}
	if err := c.Send(Integer(1)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := out.String(); got != "+PONG\r\n:1\r\n" {
		t.Errorf("output = %q", got)
	}
}

func TestString(t *testing.T) {
	if s, ok := String(Integer(12)); !ok || s != "12" {
		t.Errorf("String(Integer) = %q, %v", s, ok)
	}
	if _, ok := String(Null{}); ok {
		t.Error("String(Null) ok = true, want false")
	}
	if got := Bulk(nil); !Equal(got, Null{}) {
		t.Errorf("Bulk(nil) = %#v, want Null", got)
	}
}
