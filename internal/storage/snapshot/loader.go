package snapshot

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var (
	ErrInvalidMagic        = errors.New("snapshot: invalid magic bytes")
	ErrTruncated           = errors.New("snapshot: unexpected end of data")
	ErrUnsupportedEncoding = errors.New("snapshot: unsupported string encoding")
	ErrUnsupportedType     = errors.New("snapshot: unsupported value type")
)

// FormatError reports a malformed snapshot and the byte offset where
// decoding stopped.
type FormatError struct {
	Offset int64
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%v (offset %d)", e.Err, e.Offset)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Sink receives restored entries. expiresAt is absolute Unix milliseconds,
// or 0 for no expiry.
type Sink interface {
	Restore(key string, value []byte, expiresAt int64)
}

// Info describes a loaded snapshot.
type Info struct {
	Path    string
	Version string
	Aux     map[string]string

	// Loaded counts entries handed to the sink.
	Loaded int
	// Expired counts entries dropped because their expiry had passed.
	Expired int
	// Skipped counts entries whose value could not be represented
	// (non-string types, compressed strings). They are restored with a
	// nil value unless the key itself could not be read.
	Skipped int
}

// Option configures a load.
type Option func(*decoder)

// WithClock overrides the clock used for expiry filtering.
func WithClock(now func() time.Time) Option {
	return func(d *decoder) {
		d.now = now
	}
}

// Path joins a snapshot directory and file name.
func Path(dir, filename string) string {
	return filepath.Join(dir, filename)
}

// LoadFile loads the snapshot at path into sink.
//
// A missing file is not an error: LoadFile returns a nil Info and a nil
// error. On a FormatError, entries decoded before the failure have already
// been handed to the sink.
func LoadFile(path string, sink Sink, opts ...Option) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: open: %w", err)
	}
	defer f.Close()

	info, err := Load(f, sink, opts...)
	if info != nil {
		info.Path = path
	}
	return info, err
}

// Load decodes an RDB stream from r into sink. The returned Info is
// non-nil even when err is not, and reflects what was decoded so far.
func Load(r io.Reader, sink Sink, opts ...Option) (*Info, error) {
	d := &decoder{
		r:    bufio.NewReader(r),
		sink: sink,
		now:  time.Now,
		info: &Info{Aux: make(map[string]string)},
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.run(); err != nil {
		return d.info, err
	}
	return d.info, nil
}

type decoder struct {
	r    *bufio.Reader
	off  int64
	sink Sink
	now  func() time.Time
	info *Info
}

func (d *decoder) fail(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = ErrTruncated
	}
	return &FormatError{Offset: d.off, Err: err}
}

func (d *decoder) run() error {
	header := make([]byte, headerSize)
	if err := d.readFull(header); err != nil {
		return d.fail(err)
	}
	if string(header[:len(magic)]) != magic {
		return &FormatError{Offset: 0, Err: ErrInvalidMagic}
	}
	d.info.Version = string(header[len(magic):])

	for {
		op, err := d.readByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return d.fail(err)
		}

		switch op {
		case opAux:
			if err := d.readAux(); err != nil {
				return d.fail(err)
			}
		case opSelectDB:
			if _, err := d.readPlainLength(); err != nil {
				return d.fail(err)
			}
		case opResizeDB:
			if _, err := d.readPlainLength(); err != nil {
				return d.fail(err)
			}
			if _, err := d.readPlainLength(); err != nil {
				return d.fail(err)
			}
		case opExpireTime:
			var b [4]byte
			if err := d.readFull(b[:]); err != nil {
				return d.fail(err)
			}
			expiresAt := int64(binary.LittleEndian.Uint32(b[:])) * 1000
			if err := d.readEntry(expiresAt); err != nil {
				return d.fail(err)
			}
		case opExpireTimeMs:
			var b [8]byte
			if err := d.readFull(b[:]); err != nil {
				return d.fail(err)
			}
			expiresAt := int64(binary.LittleEndian.Uint64(b[:]))
			if err := d.readEntry(expiresAt); err != nil {
				return d.fail(err)
			}
		case opEOF:
			n, err := io.Copy(io.Discard, d.r)
			d.off += n
			if err != nil {
				return d.fail(err)
			}
			return nil
		default:
			if err := d.r.UnreadByte(); err != nil {
				return d.fail(err)
			}
			d.off--
			if err := d.readEntry(0); err != nil {
				return d.fail(err)
			}
		}
	}
}

func (d *decoder) readAux() error {
	key, _, err := d.readString()
	if err != nil {
		return err
	}
	value, _, err := d.readString()
	if err != nil {
		return err
	}
	d.info.Aux[string(key)] = string(value)
	return nil
}

// readEntry reads one key-value pair. expiresAt of 0 means no expiry.
func (d *decoder) readEntry(expiresAt int64) error {
	valueType, err := d.readByte()
	if err != nil {
		return err
	}
	key, keyOK, err := d.readString()
	if err != nil {
		return err
	}

	var (
		value   []byte
		valueOK bool
	)
	if valueType == typeString {
		value, valueOK, err = d.readString()
	} else {
		err = d.skipValue(valueType)
	}
	if err != nil {
		return err
	}

	switch {
	case !keyOK:
		d.info.Skipped++
	case expiresAt != 0 && expiresAt <= d.now().UnixMilli():
		d.info.Expired++
	case !valueOK:
		d.sink.Restore(string(key), nil, expiresAt)
		d.info.Skipped++
	default:
		d.sink.Restore(string(key), value, expiresAt)
		d.info.Loaded++
	}
	return nil
}

// skipValue consumes the payload of a non-string value.
func (d *decoder) skipValue(valueType byte) error {
	switch valueType {
	case typeHashZipmap, typeListZiplist, typeSetIntset, typeZSetZiplist,
		typeHashZiplist, typeHashListpack, typeZSetListpack, typeSetListpack:
		_, _, err := d.readString()
		return err
	case typeList, typeSet, typeListQuicklist:
		return d.skipStrings(1)
	case typeHash:
		return d.skipStrings(2)
	case typeZSet:
		n, err := d.readPlainLength()
		if err != nil {
			return err
		}
		for i := uint64(0); i < n; i++ {
			if _, _, err := d.readString(); err != nil {
				return err
			}
			if err := d.skipDoubleString(); err != nil {
				return err
			}
		}
		return nil
	case typeZSet2:
		n, err := d.readPlainLength()
		if err != nil {
			return err
		}
		for i := uint64(0); i < n; i++ {
			if _, _, err := d.readString(); err != nil {
				return err
			}
			if err := d.discard(8); err != nil {
				return err
			}
		}
		return nil
	case typeListQuicklist2:
		n, err := d.readPlainLength()
		if err != nil {
			return err
		}
		for i := uint64(0); i < n; i++ {
			if _, err := d.readPlainLength(); err != nil {
				return err
			}
			if _, _, err := d.readString(); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedType, valueType)
	}
}

// skipStrings reads a count and then count*perItem strings.
func (d *decoder) skipStrings(perItem uint64) error {
	n, err := d.readPlainLength()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n*perItem; i++ {
		if _, _, err := d.readString(); err != nil {
			return err
		}
	}
	return nil
}

// skipDoubleString consumes a score written as a length-prefixed ASCII
// double. Lengths 253..255 encode NaN and the infinities with no body.
func (d *decoder) skipDoubleString() error {
	n, err := d.readByte()
	if err != nil {
		return err
	}
	if n >= 253 {
		return nil
	}
	return d.discard(int64(n))
}

// readLength decodes a length-encoded value. When special is true, n holds
// the special encoding code rather than a length.
func (d *decoder) readLength() (n uint64, special bool, err error) {
	first, err := d.readByte()
	if err != nil {
		return 0, false, err
	}

	switch first >> 6 {
	case len6Bit:
		return uint64(first & 0x3F), false, nil
	case len14Bit:
		next, err := d.readByte()
		if err != nil {
			return 0, false, err
		}
		return uint64(first&0x3F)<<8 | uint64(next), false, nil
	case len32Bit:
		var b [4]byte
		if err := d.readFull(b[:]); err != nil {
			return 0, false, err
		}
		return uint64(binary.LittleEndian.Uint32(b[:])), false, nil
	default:
		return uint64(first & 0x3F), true, nil
	}
}

// readPlainLength reads a length that must not use a special encoding.
func (d *decoder) readPlainLength() (uint64, error) {
	n, special, err := d.readLength()
	if err != nil {
		return 0, err
	}
	if special {
		return 0, fmt.Errorf("%w: special encoding %d where a length was expected", ErrUnsupportedEncoding, n)
	}
	return n, nil
}

// readString reads a length-prefixed or integer-encoded string. ok is false
// when the string was compressed and could not be materialized.
func (d *decoder) readString() (s []byte, ok bool, err error) {
	n, special, err := d.readLength()
	if err != nil {
		return nil, false, err
	}

	if !special {
		if n > maxStringLen {
			return nil, false, fmt.Errorf("snapshot: string length %d exceeds limit %d", n, maxStringLen)
		}
		buf := make([]byte, n)
		if err := d.readFull(buf); err != nil {
			return nil, false, err
		}
		return buf, true, nil
	}

	switch n {
	case encInt8:
		b, err := d.readByte()
		if err != nil {
			return nil, false, err
		}
		return strconv.AppendInt(nil, int64(int8(b)), 10), true, nil
	case encInt16:
		var b [2]byte
		if err := d.readFull(b[:]); err != nil {
			return nil, false, err
		}
		return strconv.AppendInt(nil, int64(int16(binary.LittleEndian.Uint16(b[:]))), 10), true, nil
	case encInt32:
		var b [4]byte
		if err := d.readFull(b[:]); err != nil {
			return nil, false, err
		}
		return strconv.AppendInt(nil, int64(int32(binary.LittleEndian.Uint32(b[:]))), 10), true, nil
	case encLZF:
		clen, err := d.readPlainLength()
		if err != nil {
			return nil, false, err
		}
		if _, err := d.readPlainLength(); err != nil {
			return nil, false, err
		}
		if err := d.discard(int64(clen)); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("%w: %d", ErrUnsupportedEncoding, n)
	}
}

func (d *decoder) readByte() (byte, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, err
	}
	d.off++
	return b, nil
}

func (d *decoder) readFull(buf []byte) error {
	n, err := io.ReadFull(d.r, buf)
	d.off += int64(n)
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (d *decoder) discard(n int64) error {
	m, err := io.CopyN(io.Discard, d.r, n)
	d.off += m
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
