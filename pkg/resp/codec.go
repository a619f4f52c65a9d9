package resp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Protocol limits to prevent DoS attacks.
const (
	// MaxArrayLen limits the number of elements in a single array.
	MaxArrayLen = 1024 * 1024

	// MaxBulkLen limits the size of a single bulk string (512MB).
	MaxBulkLen = 512 * 1024 * 1024

	// MaxLineLen limits header and simple-string lines (64KB).
	MaxLineLen = 64 * 1024

	// MaxDepth limits array nesting.
	MaxDepth = 32

	// bulkPrealloc caps the buffer reserved from a declared bulk length
	// before its payload arrives.
	bulkPrealloc = 64 * 1024

	// arrayPrealloc caps the elements reserved from a declared array length.
	arrayPrealloc = 1024
)

var (
	ErrProtocol      = errors.New("resp: protocol error")
	ErrLimitExceeded = fmt.Errorf("%w: limit exceeded", ErrProtocol)
)

var crlf = []byte("\r\n")

// Codec reads and writes frames over one byte stream.
// A Codec is not safe for concurrent use.
type Codec struct {
	br *bufio.Reader
	bw *bufio.Writer
}

// NewCodec returns a Codec over r and w. Buffered readers and writers
// are used as-is.
func NewCodec(r io.Reader, w io.Writer) *Codec {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}
	return &Codec{br: br, bw: bw}
}

// Await blocks until at least one byte can be read.
func (c *Codec) Await() error {
	_, err := c.br.Peek(1)
	return err
}

// Receive reads one raw line with the CRLF terminator stripped.
//
// With n >= 0 exactly n payload bytes plus CRLF are read; with n < 0 the
// line runs up to the next CRLF. io.EOF is returned only when the stream
// ends cleanly before any byte of the line.
func (c *Codec) Receive(n int) ([]byte, error) {
	if n < 0 {
		return c.readLine(MaxLineLen)
	}
	if n > MaxBulkLen {
		return nil, fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrLimitExceeded, n, MaxBulkLen)
	}

	buf, err := c.readBulk(n + 2)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if !bytes.HasSuffix(buf, crlf) {
		return nil, fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	return buf[:n], nil
}

// readBulk reads exactly n bytes. Above bulkPrealloc the buffer grows as
// data arrives instead of trusting the declared length.
func (c *Codec) readBulk(n int) ([]byte, error) {
	if n <= bulkPrealloc {
		buf := make([]byte, n)
		if _, err := io.ReadFull(c.br, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}

	var body bytes.Buffer
	body.Grow(bulkPrealloc)
	if _, err := io.CopyN(&body, c.br, int64(n)); err != nil {
		return nil, err
	}
	return body.Bytes(), nil
}

// ReadFrame reads and decodes one complete frame.
func (c *Codec) ReadFrame() (Frame, error) {
	line, err := c.Receive(-1)
	if err != nil {
		return nil, err
	}
	return c.Deserialize(line)
}

// Deserialize decodes a frame whose header line has already been read,
// pulling array elements and bulk bodies from the stream.
func (c *Codec) Deserialize(line []byte) (Frame, error) {
	return c.deserialize(line, 0)
}

func (c *Codec) deserialize(line []byte, depth int) (Frame, error) {
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrProtocol)
	}

	body := line[1:]
	switch line[0] {
	case '+':
		return SimpleString(body), nil
	case '-':
		return Error(body), nil
	case ':':
		n, err := strconv.ParseInt(string(body), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid integer %q", ErrProtocol, body)
		}
		return Integer(n), nil
	case '$':
		n, err := parseLength(body)
		if err != nil {
			return nil, err
		}
		if n == -1 {
			return Null{}, nil
		}
		payload, err := c.Receive(n)
		if err != nil {
			return nil, err
		}
		return BulkString(payload), nil
	case '*':
		n, err := parseLength(body)
		if err != nil {
			return nil, err
		}
		if n == -1 {
			return Null{}, nil
		}
		if n > MaxArrayLen {
			return nil, fmt.Errorf("%w: array length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
		}
		if depth >= MaxDepth {
			return nil, fmt.Errorf("%w: nesting exceeds limit %d", ErrLimitExceeded, MaxDepth)
		}
		out := make(Array, 0, min(n, arrayPrealloc))
		for i := 0; i < n; i++ {
			elemLine, err := c.Receive(-1)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil, io.ErrUnexpectedEOF
				}
				return nil, err
			}
			elem, err := c.deserialize(elemLine, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown type tag %q", ErrProtocol, line[0])
	}
}

func parseLength(b []byte) (int, error) {
	n, err := strconv.Atoi(string(b))
	if err != nil || n < -1 {
		return 0, fmt.Errorf("%w: invalid length %q", ErrProtocol, b)
	}
	return n, nil
}

func (c *Codec) readLine(maxLen int) ([]byte, error) {
	var buf []byte
	for {
		frag, err := c.br.ReadSlice('\n')
		if err == nil {
			buf = append(buf, frag...)
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			buf = append(buf, frag...)
			if len(buf) > maxLen {
				return nil, fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			if len(buf) == 0 && len(frag) == 0 {
				return nil, io.EOF
			}
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	if len(buf) > maxLen {
		return nil, fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
	}
	if !bytes.HasSuffix(buf, crlf) {
		return nil, fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}
	return buf[:len(buf)-2], nil
}

// Serialize encodes f into its wire form.
func Serialize(f Frame) ([]byte, error) {
	return AppendFrame(nil, f)
}

// AppendFrame appends the wire form of f to dst.
func AppendFrame(dst []byte, f Frame) ([]byte, error) {
	switch v := f.(type) {
	case SimpleString:
		if err := checkLine(string(v)); err != nil {
			return dst, err
		}
		dst = append(dst, '+')
		dst = append(dst, v...)
	case Error:
		if err := checkLine(string(v)); err != nil {
			return dst, err
		}
		dst = append(dst, '-')
		dst = append(dst, v...)
	case Integer:
		dst = append(dst, ':')
		dst = strconv.AppendInt(dst, int64(v), 10)
	case BulkString:
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(v)), 10)
		dst = append(dst, crlf...)
		dst = append(dst, v...)
	case Null:
		dst = append(dst, "$-1"...)
	case Array:
		dst = append(dst, '*')
		dst = strconv.AppendInt(dst, int64(len(v)), 10)
		dst = append(dst, crlf...)
		for _, elem := range v {
			var err error
			if dst, err = AppendFrame(dst, elem); err != nil {
				return dst, err
			}
		}
		return dst, nil
	default:
		return dst, fmt.Errorf("%w: cannot serialize %T", ErrProtocol, f)
	}
	return append(dst, crlf...), nil
}

func checkLine(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] == '\r' || s[i] == '\n' {
			return fmt.Errorf("%w: line frame contains CR or LF", ErrProtocol)
		}
	}
	return nil
}

// Write buffers the wire form of f without flushing.
func (c *Codec) Write(f Frame) error {
	b, err := Serialize(f)
	if err != nil {
		return err
	}
	_, err = c.bw.Write(b)
	return err
}

// Flush writes any buffered frames to the stream.
func (c *Codec) Flush() error {
	return c.bw.Flush()
}

// Send writes f and flushes.
func (c *Codec) Send(f Frame) error {
	if err := c.Write(f); err != nil {
		return err
	}
	return c.bw.Flush()
}
