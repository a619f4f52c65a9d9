package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// emptyRDB is a snapshot written by a stock server with no keys.
const emptyRDB = "524544495330303131fa0972656469732d76657205372e322e30fa0a72656469732d62697473c040fa056374696d65c26d08bc65fa08757365642d6d656dc2b0c41000fa08616f662d62617365c000fff06e3bfec0ff5aa2"

type entry struct {
	value     string
	absent    bool
	expiresAt int64
}

type mapSink map[string]entry

func (m mapSink) Restore(key string, value []byte, expiresAt int64) {
	m[key] = entry{value: string(value), absent: value == nil, expiresAt: expiresAt}
}

// rdb builds snapshot bytes for tests.
type rdb struct {
	bytes.Buffer
}

func newRDB() *rdb {
	b := &rdb{}
	b.WriteString("REDIS0011")
	return b
}

func (b *rdb) str(s string) *rdb {
	b.WriteByte(byte(len(s)))
	b.WriteString(s)
	return b
}

func (b *rdb) op(op byte) *rdb {
	b.WriteByte(op)
	return b
}

func (b *rdb) kv(key, value string) *rdb {
	b.WriteByte(typeString)
	return b.str(key).str(value)
}

func (b *rdb) expireMs(ms uint64) *rdb {
	b.WriteByte(opExpireTimeMs)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], ms)
	b.Write(buf[:])
	return b
}

func (b *rdb) expireSec(sec uint32) *rdb {
	b.WriteByte(opExpireTime)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], sec)
	b.Write(buf[:])
	return b
}

func (b *rdb) end() []byte {
	b.WriteByte(opEOF)
	b.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	return b.Bytes()
}

var fixedNow = time.UnixMilli(1_700_000_000_000)

func load(t *testing.T, data []byte) (mapSink, *Info, error) {
	t.Helper()
	sink := mapSink{}
	info, err := Load(bytes.NewReader(data), sink, WithClock(func() time.Time { return fixedNow }))
	return sink, info, err
}

// ============================================================
// Header and opcode tests
// ============================================================

func TestLoad_SingleKey(t *testing.T) {
	sink, info, err := load(t, newRDB().kv("k", "v").end())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(sink) != 1 || sink["k"] != (entry{value: "v"}) {
		t.Fatalf("sink = %v, want {k: v}", sink)
	}
	if info.Version != "0011" {
		t.Errorf("Version = %q, want 0011", info.Version)
	}
	if info.Loaded != 1 {
		t.Errorf("Loaded = %d, want 1", info.Loaded)
	}
}

func TestLoad_EmptyServerSnapshot(t *testing.T) {
	data, err := hex.DecodeString(emptyRDB)
	if err != nil {
		t.Fatalf("hex: %v", err)
	}
	sink, info, err := load(t, data)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(sink) != 0 {
		t.Errorf("sink = %v, want empty", sink)
	}
	want := map[string]string{
		"redis-ver":  "7.2.0",
		"redis-bits": "64",
		"ctime":      "1706821741",
		"used-mem":   "1098928",
		"aof-base":   "0",
	}
	for k, v := range want {
		if info.Aux[k] != v {
			t.Errorf("Aux[%q] = %q, want %q", k, info.Aux[k], v)
		}
	}
}

func TestLoad_DatabaseSections(t *testing.T) {
	b := newRDB()
	b.op(opAux).str("redis-ver").str("7.2.0")
	b.op(opSelectDB).WriteByte(0)
	b.op(opResizeDB).WriteByte(2)
	b.WriteByte(1)
	b.kv("a", "1")
	b.expireMs(uint64(fixedNow.UnixMilli()) + 5000).kv("b", "2")

	sink, _, err := load(t, b.end())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sink["a"] != (entry{value: "1"}) {
		t.Errorf("a = %+v", sink["a"])
	}
	if got := sink["b"]; got.value != "2" || got.expiresAt != fixedNow.UnixMilli()+5000 {
		t.Errorf("b = %+v", got)
	}
}

func TestLoad_ExpiryFiltering(t *testing.T) {
	now := uint64(fixedNow.UnixMilli())
	b := newRDB()
	b.expireMs(now - 1).kv("past", "x")
	b.expireMs(now).kv("boundary", "x")
	b.expireMs(now + 1).kv("future", "x")
	b.expireSec(uint32(now/1000) - 10).kv("past-sec", "x")
	b.expireSec(uint32(now/1000) + 10).kv("future-sec", "x")

	sink, info, err := load(t, b.end())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, k := range []string{"past", "boundary", "past-sec"} {
		if _, ok := sink[k]; ok {
			t.Errorf("%q should have been dropped", k)
		}
	}
	if got := sink["future-sec"].expiresAt; got != (int64(now/1000)+10)*1000 {
		t.Errorf("future-sec expiresAt = %d", got)
	}
	if _, ok := sink["future"]; !ok {
		t.Error("future should be loaded")
	}
	if info.Expired != 3 || info.Loaded != 2 {
		t.Errorf("Expired = %d, Loaded = %d, want 3, 2", info.Expired, info.Loaded)
	}
}

func TestLoad_NoEndMarker(t *testing.T) {
	sink, _, err := load(t, newRDB().kv("k", "v").Bytes())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sink["k"].value != "v" {
		t.Errorf("sink = %v", sink)
	}
}

// ============================================================
// Length and string encoding tests
// ============================================================

func TestLoad_LengthEncodings(t *testing.T) {
	long := bytes.Repeat([]byte("x"), 300)
	huge := bytes.Repeat([]byte("y"), 70000)

	b := newRDB()
	// 14-bit length.
	b.WriteByte(typeString)
	b.str("k14")
	b.WriteByte(0x40 | byte(len(long)>>8))
	b.WriteByte(byte(len(long)))
	b.Write(long)
	// 32-bit little-endian length.
	b.WriteByte(typeString)
	b.str("k32")
	b.WriteByte(0x80)
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(huge)))
	b.Write(n[:])
	b.Write(huge)

	sink, _, err := load(t, b.end())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sink["k14"].value != string(long) {
		t.Errorf("k14 length = %d, want %d", len(sink["k14"].value), len(long))
	}
	if sink["k32"].value != string(huge) {
		t.Errorf("k32 length = %d, want %d", len(sink["k32"].value), len(huge))
	}
}

func TestLoad_IntegerEncodings(t *testing.T) {
	b := newRDB()
	b.WriteByte(typeString)
	b.str("i8")
	b.Write([]byte{0xC0, 0xFE})
	b.WriteByte(typeString)
	b.str("i16")
	b.Write([]byte{0xC1, 0x39, 0x30})
	b.WriteByte(typeString)
	b.str("i32")
	b.Write([]byte{0xC2, 0x87, 0xD6, 0x12, 0x00})

	sink, _, err := load(t, b.end())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := map[string]string{"i8": "-2", "i16": "12345", "i32": "1234567"}
	for k, v := range want {
		if sink[k].value != v {
			t.Errorf("%s = %q, want %q", k, sink[k].value, v)
		}
	}
}

func TestLoad_CompressedValueWithoutValue(t *testing.T) {
	b := newRDB()
	b.WriteByte(typeString)
	b.str("lzf")
	b.Write([]byte{0xC3, 0x03, 0x0A, 0xAA, 0xBB, 0xCC})
	b.kv("after", "ok")

	sink, info, err := load(t, b.end())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got, ok := sink["lzf"]; !ok || !got.absent {
		t.Errorf("lzf = %+v, %v; want key restored without a value", got, ok)
	}
	if sink["after"].value != "ok" {
		t.Errorf("after = %+v", sink["after"])
	}
	if info.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", info.Skipped)
	}
}

func TestLoad_NonStringTypesWithoutValue(t *testing.T) {
	b := newRDB()
	// list of two elements
	b.WriteByte(typeList)
	b.str("list").WriteByte(2)
	b.str("a").str("b")
	// hash with one field
	b.WriteByte(typeHash)
	b.str("hash").WriteByte(1)
	b.str("f").str("v")
	// zset with one member and an ASCII score
	b.WriteByte(typeZSet)
	b.str("zset").WriteByte(1)
	b.str("m").str("1.5")
	// zset2 with one member and a binary score
	b.WriteByte(typeZSet2)
	b.str("zset2").WriteByte(1)
	b.str("m").Write(make([]byte, 8))
	// intset blob
	b.WriteByte(typeSetIntset)
	b.str("intset").str("\x02\x00\x00\x00\x01\x00\x00\x00\x01\x00")
	// quicklist2 with one node
	b.WriteByte(typeListQuicklist2)
	b.str("ql").WriteByte(1)
	b.WriteByte(2)
	b.str("node")
	b.kv("plain", "v")

	sink, info, err := load(t, b.end())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sink["plain"] != (entry{value: "v"}) {
		t.Errorf("plain = %+v", sink["plain"])
	}
	for _, k := range []string{"list", "hash", "zset", "zset2", "intset", "ql"} {
		if got, ok := sink[k]; !ok || !got.absent {
			t.Errorf("%s = %+v, %v; want key restored without a value", k, got, ok)
		}
	}
	if len(sink) != 7 {
		t.Errorf("len(sink) = %d, want 7", len(sink))
	}
	if info.Loaded != 1 {
		t.Errorf("Loaded = %d, want 1", info.Loaded)
	}
	if info.Skipped != 6 {
		t.Errorf("Skipped = %d, want 6", info.Skipped)
	}
}

// ============================================================
// Error tests
// ============================================================

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "empty", data: nil, wantErr: ErrTruncated},
		{name: "short header", data: []byte("REDIS00"), wantErr: ErrTruncated},
		{name: "bad magic", data: []byte("REDIX0011\xff"), wantErr: ErrInvalidMagic},
		{name: "truncated value", data: append(newRDB().Bytes(), typeString, 1, 'k', 5, 'v'), wantErr: ErrTruncated},
		{name: "truncated expiry", data: append(newRDB().Bytes(), opExpireTimeMs, 1, 2), wantErr: ErrTruncated},
		{name: "unknown type", data: append(newRDB().Bytes(), 0x63, 1, 'k'), wantErr: ErrUnsupportedType},
		{name: "module type", data: append(newRDB().Bytes(), typeModule, 1, 'k'), wantErr: ErrUnsupportedType},
		{name: "bad special encoding", data: append(newRDB().Bytes(), typeString, 0xC5), wantErr: ErrUnsupportedEncoding},
		{name: "special length in select", data: append(newRDB().Bytes(), opSelectDB, 0xC0), wantErr: ErrUnsupportedEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, info, err := load(t, tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Load() error = %v, want %v", err, tt.wantErr)
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("error %T is not *FormatError", err)
			}
			if info == nil {
				t.Error("Info should be non-nil on error")
			}
		})
	}
}

func TestLoad_PartialOnError(t *testing.T) {
	data := append(newRDB().kv("first", "1").Bytes(), typeString, 3, 'b', 'a')
	sink, info, err := load(t, data)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("Load() error = %v, want ErrTruncated", err)
	}
	if sink["first"].value != "1" || info.Loaded != 1 {
		t.Errorf("entries before the failure should be kept: sink = %v", sink)
	}
}

// ============================================================
// LoadFile tests
// ============================================================

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir, "dump.rdb")
	if err := os.WriteFile(path, newRDB().kv("k", "v").end(), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	sink := mapSink{}
	info, err := LoadFile(path, sink)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if info.Path != path {
		t.Errorf("Path = %q, want %q", info.Path, path)
	}
	if sink["k"].value != "v" {
		t.Errorf("sink = %v", sink)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	sink := mapSink{}
	info, err := LoadFile(filepath.Join(t.TempDir(), "nope.rdb"), sink)
	if err != nil {
		t.Fatalf("LoadFile() error = %v, want nil", err)
	}
	if info != nil {
		t.Errorf("Info = %+v, want nil", info)
	}
	if len(sink) != 0 {
		t.Errorf("sink = %v, want empty", sink)
	}
}
