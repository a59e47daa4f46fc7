package bucket

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// BenchmarkAllow measures single-threaded throughput on one hot key.
func BenchmarkAllow(b *testing.B) {
	store := NewInMemoryBucketStore()
	defer store.Close()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Allow(ctx, "bench-key", 1000, time.Minute)
	}
}

// BenchmarkAllow_Parallel measures contention on a single shared key.
func BenchmarkAllow_Parallel(b *testing.B) {
	store := NewInMemoryBucketStore()
	defer store.Close()
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = store.Allow(ctx, "bench-key", 1000, time.Minute)
		}
	})
}

// BenchmarkAllow_HighCardinality spreads load over many keys so shard
// distribution dominates rather than one mutex.
func BenchmarkAllow_HighCardinality(b *testing.B) {
	store := NewInMemoryBucketStore()
	defer store.Close()
	ctx := context.Background()

	for i := 0; b.Loop(); i++ {
		key := fmt.Sprintf("ip:10.0.%d.%d", (i/256)%256, i%256)
		_, _ = store.Allow(ctx, key, 100, time.Minute)
	}
}
