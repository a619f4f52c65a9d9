package logger

import (
	"log/slog"
	"strconv"
	"unicode/utf8"
)

// MaxValueLen bounds string and byte-slice attribute values. Command
// arguments can be arbitrarily large.
const MaxValueLen = 256

func truncateAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		if s := a.Value.String(); len(s) > MaxValueLen {
			return slog.String(a.Key, truncate(s))
		}
	case slog.KindAny:
		if b, ok := a.Value.Any().([]byte); ok {
			s := string(b)
			if len(s) > MaxValueLen {
				s = truncate(s)
			}
			return slog.String(a.Key, s)
		}
	}
	return a
}

func truncate(s string) string {
	cut := MaxValueLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(" + strconv.Itoa(len(s)) + " bytes)"
}
