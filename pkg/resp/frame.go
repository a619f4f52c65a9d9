// Package resp implements the RESP2 wire protocol: a small recursive frame
// algebra, a buffered codec, and a minimal client.
package resp

import (
	"strconv"
)

// Frame is one unit of the RESP2 value algebra.
//
// The set of implementations is closed: Array, BulkString, SimpleString,
// Error, Integer and Null.
type Frame interface {
	frame()
}

// Array is an ordered sequence of frames.
type Array []Frame

// BulkString is a binary-safe, length-prefixed string.
type BulkString []byte

// SimpleString is short text without embedded CR or LF.
type SimpleString string

// Error is an error reply.
type Error string

// Integer is a signed 64-bit integer reply.
type Integer int64

// Null is the null bulk string.
type Null struct{}

func (Array) frame()        {}
func (BulkString) frame()   {}
func (SimpleString) frame() {}
func (Error) frame()        {}
func (Integer) frame()      {}
func (Null) frame()         {}

// Common replies.
var (
	OK   = SimpleString("OK")
	Pong = SimpleString("PONG")
)

// Command builds a request frame from plain string arguments.
func Command(args ...string) Array {
	out := make(Array, len(args))
	for i, a := range args {
		out[i] = BulkString(a)
	}
	return out
}

// Bulk returns a BulkString for b, or Null when b is nil.
func Bulk(b []byte) Frame {
	if b == nil {
		return Null{}
	}
	return BulkString(b)
}

// String renders scalar frames as text. The boolean is false for Array and Null.
func String(f Frame) (string, bool) {
	switch v := f.(type) {
	case BulkString:
		return string(v), true
	case SimpleString:
		return string(v), true
	case Error:
		return string(v), true
	case Integer:
		return strconv.FormatInt(int64(v), 10), true
	default:
		return "", false
	}
}

// Equal reports whether two frames are structurally identical.
// A nil BulkString and an empty one compare equal.
func Equal(a, b Frame) bool {
	switch av := a.(type) {
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case BulkString:
		bv, ok := b.(BulkString)
		return ok && string(av) == string(bv)
	case SimpleString:
		bv, ok := b.(SimpleString)
		return ok && av == bv
	case Error:
		bv, ok := b.(Error)
		return ok && av == bv
	case Integer:
		bv, ok := b.(Integer)
		return ok && av == bv
	case Null:
		_, ok := b.(Null)
		return ok
	default:
		return false
	}
}
