package benchmark

import (
	"fmt"
	"testing"

	"github.com/yndnr/respkv-go/internal/storage/memory"
)

// BenchmarkStoreSet benchmarks writes into a store of various sizes.
func BenchmarkStoreSet(b *testing.B) {
	for _, preload := range SmallKeyCounts {
		b.Run(fmt.Sprintf("keys_%d", preload), func(b *testing.B) {
			store := memory.New()
			prefillStore(store, preload)
			value := newValue(64)
			keys := make([]string, 1024)
			for i := range keys {
				keys[i] = newKey()
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				store.Set(keys[i%len(keys)], value, 0)
			}
		})
	}
}

// BenchmarkStoreGet benchmarks reads at various scales.
func BenchmarkStoreGet(b *testing.B) {
	for _, count := range KeyCounts {
		b.Run(fmt.Sprintf("keys_%d", count), func(b *testing.B) {
			store := memory.New()
			keys := prefillStore(store, count)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if _, ok := store.Get(keys[i%len(keys)]); !ok {
					b.Fatal("Get() missed a prefilled key")
				}
			}
		})
	}
}

// BenchmarkStoreGetParallel benchmarks concurrent reads and writes.
func BenchmarkStoreGetParallel(b *testing.B) {
	store := memory.New()
	keys := prefillStore(store, 100000)
	value := newValue(64)

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := keys[i%len(keys)]
			if i%10 == 0 {
				store.Set(key, value, 0)
			} else {
				store.Get(key)
			}
			i++
		}
	})
}

// BenchmarkStoreKeys benchmarks KEYS * at various scales.
func BenchmarkStoreKeys(b *testing.B) {
	for _, count := range SmallKeyCounts {
		b.Run(fmt.Sprintf("keys_%d", count), func(b *testing.B) {
			store := memory.New()
			prefillStore(store, count)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if got := len(store.Keys()); got != count {
					b.Fatalf("Keys() = %d, want %d", got, count)
				}
			}
		})
	}
}
