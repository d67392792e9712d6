package blockcache_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/hupe1980/blockcache"
	"github.com/hupe1980/blockcache/blockstore"
	"github.com/hupe1980/blockcache/workload"
)

func BenchmarkRead(b *testing.B) {
	ctx := context.Background()
	const numBlocks = 4096

	for _, dist := range []workload.Distribution{workload.DistUniform, workload.DistZipf} {
		for _, capacity := range []int{64, 1024} {
			b.Run(fmt.Sprintf("%s/capacity=%d", dist, capacity), func(b *testing.B) {
				c, err := blockcache.New(capacity, blockstore.NewMemoryStore(blockstore.DefaultBlockSize, numBlocks))
				if err != nil {
					b.Fatal(err)
				}
				gen, err := workload.New(workload.Config{Distribution: dist, NumBlocks: numBlocks, Seed: 1})
				if err != nil {
					b.Fatal(err)
				}
				ids := workload.Sequence(gen, 1<<16)

				b.SetBytes(blockstore.DefaultBlockSize)
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if _, err := c.Read(ctx, ids[i&(len(ids)-1)]); err != nil {
						b.Fatal(err)
					}
				}
				b.StopTimer()

				s := c.Stats()
				b.ReportMetric(s.HitRatio(), "hit-ratio")
			})
		}
	}
}

func BenchmarkWrite(b *testing.B) {
	ctx := context.Background()
	c, err := blockcache.New(256, blockstore.NewMemoryStore(blockstore.DefaultBlockSize, 0))
	if err != nil {
		b.Fatal(err)
	}
	gen := workload.Zipf(1.1, 4096, 1)
	data := make([]byte, blockstore.DefaultBlockSize)

	b.SetBytes(blockstore.DefaultBlockSize)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := c.Write(ctx, gen.Next(), data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReadParallel(b *testing.B) {
	ctx := context.Background()
	c, err := blockcache.New(512, blockstore.NewMemoryStore(blockstore.DefaultBlockSize, 0))
	if err != nil {
		b.Fatal(err)
	}

	b.RunParallel(func(pb *testing.PB) {
		gen := workload.Zipf(1.1, 4096, 7)
		for pb.Next() {
			if _, err := c.Read(ctx, gen.Next()); err != nil {
				b.Fatal(err)
			}
		}
	})
}
