package benchmark

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/respkv-go/internal/server/config"
	"github.com/yndnr/respkv-go/internal/server/redisserver"
	"github.com/yndnr/respkv-go/internal/server/replication"
	"github.com/yndnr/respkv-go/internal/storage/memory"
)

// KeyCounts defines the store sizes for benchmarking.
var KeyCounts = []int{10000, 100000, 500000}

// SmallKeyCounts for quick benchmarks.
var SmallKeyCounts = []int{1000, 10000}

// newKey generates a unique, roughly time-ordered key.
func newKey() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, _ := ulid.New(ulid.Timestamp(time.Now()), entropy)
	return "key:" + strings.ToLower(id.String())
}

// newValue returns a random payload of n bytes.
func newValue(n int) []byte {
	v := make([]byte, n)
	_, _ = rand.Read(v)
	return v
}

// prefillStore writes count keys and returns them.
func prefillStore(store *memory.Store, count int) []string {
	keys := make([]string, count)
	value := newValue(64)
	for i := range keys {
		keys[i] = newKey()
		store.Set(keys[i], value, 0)
	}
	return keys
}

// buildRDB encodes count string entries, every other one with a future
// millisecond expiry.
func buildRDB(count int) []byte {
	var buf bytes.Buffer
	buf.WriteString("REDIS0011")
	buf.Write([]byte{0xFE, 0x00, 0xFB})
	writeLen(&buf, count)
	writeLen(&buf, count/2)

	expiry := uint64(time.Now().Add(time.Hour).UnixMilli())
	value := newValue(64)
	for i := 0; i < count; i++ {
		if i%2 == 1 {
			buf.WriteByte(0xFC)
			_ = binary.Write(&buf, binary.LittleEndian, expiry)
		}
		buf.WriteByte(0x00)
		writeString(&buf, []byte(newKey()))
		writeString(&buf, value)
	}
	buf.WriteByte(0xFF)
	buf.Write(make([]byte, 8))
	return buf.Bytes()
}

func writeLen(buf *bytes.Buffer, n int) {
	switch {
	case n < 1<<6:
		buf.WriteByte(byte(n))
	case n < 1<<14:
		buf.WriteByte(0x40 | byte(n>>8))
		buf.WriteByte(byte(n))
	default:
		buf.WriteByte(0x80)
		_ = binary.Write(buf, binary.LittleEndian, uint32(n))
	}
}

func writeString(buf *bytes.Buffer, s []byte) {
	writeLen(buf, len(s))
	buf.Write(s)
}

// startServer runs an in-process server for client benchmarks.
func startServer(b *testing.B) *redisserver.Server {
	b.Helper()
	identity, err := replication.NewPrimary()
	if err != nil {
		b.Fatalf("NewPrimary() error = %v", err)
	}
	handler := redisserver.NewCommandHandler(memory.New(), config.NewParams(config.Default()), identity, nil)
	srv := redisserver.New(&redisserver.Config{Address: "127.0.0.1:0"}, handler, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := srv.Start(context.Background()); err != nil {
		b.Fatalf("Start() error = %v", err)
	}
	b.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}
