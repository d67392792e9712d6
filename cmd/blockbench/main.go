// Command blockbench drives a block cache with a synthetic workload and
// reports hit/miss statistics.
//
//	blockbench -file disk.img -blocks 1024 -capacity 10 -dist normal -ops 10000
//	blockbench -backend minio -endpoint localhost:9000 -bucket blocks -dist zipf
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/blockcache"
	"github.com/hupe1980/blockcache/blockstore"
	miniostore "github.com/hupe1980/blockcache/blockstore/minio"
	s3store "github.com/hupe1980/blockcache/blockstore/s3"
	"github.com/hupe1980/blockcache/metric"
	"github.com/hupe1980/blockcache/resource"
	"github.com/hupe1980/blockcache/workload"
)

type options struct {
	backend   string
	file      string
	format    bool
	direct    bool
	blocks    uint64
	blockSize int
	capacity  int

	ops        int
	dist       string
	mean       float64
	stddev     float64
	skew       float64
	writeRatio float64
	seed       uint64

	flushInterval time.Duration
	ioLimit       int64

	endpoint string
	bucket   string
	prefix   string
	codec    string
	insecure bool

	metricsAddr string
	verbose     bool
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.backend, "backend", "file", "backing store: file, memory, minio or s3")
	flag.StringVar(&o.file, "file", "blockbench.img", "block file for the file backend")
	flag.BoolVar(&o.format, "format", false, "zero-fill the block file before the run")
	flag.BoolVar(&o.direct, "direct", true, "bypass the OS page cache (file backend)")
	flag.Uint64Var(&o.blocks, "blocks", 1024, "number of blocks in the store")
	flag.IntVar(&o.blockSize, "block-size", blockstore.DefaultBlockSize, "block size in bytes")
	flag.IntVar(&o.capacity, "capacity", 10, "cache capacity in blocks")

	flag.IntVar(&o.ops, "ops", 10000, "number of requests")
	flag.StringVar(&o.dist, "dist", "normal", "block distribution: uniform, normal, zipf or sequential")
	flag.Float64Var(&o.mean, "mean", 50, "mean block for -dist normal")
	flag.Float64Var(&o.stddev, "stddev", 10, "standard deviation for -dist normal")
	flag.Float64Var(&o.skew, "skew", 0.7, "exponent for -dist zipf")
	flag.Float64Var(&o.writeRatio, "write-ratio", 0, "fraction of requests that are writes")
	flag.Uint64Var(&o.seed, "seed", uint64(time.Now().UnixNano()), "workload seed")

	flag.DurationVar(&o.flushInterval, "flush-interval", 0, "background flush period (0 disables)")
	flag.Int64Var(&o.ioLimit, "io-limit", 0, "store throughput limit in bytes/s (0 disables)")

	flag.StringVar(&o.endpoint, "endpoint", "localhost:9000", "MinIO endpoint")
	flag.StringVar(&o.bucket, "bucket", "blockbench", "bucket for object backends")
	flag.StringVar(&o.prefix, "prefix", "blocks", "object key prefix")
	flag.StringVar(&o.codec, "codec", "none", "object codec: none, lz4 or zstd")
	flag.BoolVar(&o.insecure, "insecure", true, "use plain HTTP for MinIO")

	flag.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flag.BoolVar(&o.verbose, "v", false, "print one line per request")
	flag.Parse()
	return o
}

func main() {
	o := parseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, o options) error {
	store, err := openStore(ctx, o)
	if err != nil {
		return fmt.Errorf("open %s store: %w", o.backend, err)
	}

	var rc *resource.Controller
	if o.ioLimit > 0 {
		rc = resource.NewController(resource.Config{
			IOLimitBytesPerSec: o.ioLimit,
			IOBurstBytes:       max(o.blockSize, int(o.ioLimit)),
		})
		store = blockstore.NewRateLimitedStore(store, rc)
	}

	metrics := &blockcache.BasicMetricsCollector{}
	var collector blockcache.MetricsCollector = metrics
	if o.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector = teeCollector{metrics, metric.NewPrometheusCollector(reg)}
		go func() {
			http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(o.metricsAddr, nil); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	cache, err := blockcache.New(o.capacity, store,
		blockcache.WithLogger(blockcache.NewTextLogger(level)),
		blockcache.WithMetricsCollector(collector),
		blockcache.WithResourceController(rc),
		blockcache.WithFlushInterval(o.flushInterval),
	)
	if err != nil {
		_ = store.Close()
		return err
	}

	gen, err := workload.New(workload.Config{
		Distribution: workload.Distribution(o.dist),
		NumBlocks:    o.blocks,
		Seed:         o.seed,
		Mean:         o.mean,
		StdDev:       o.stddev,
		Skew:         o.skew,
	})
	if err != nil {
		_ = cache.Close(ctx)
		return err
	}
	coin := rand.New(rand.NewPCG(o.seed, o.seed+1))

	fmt.Printf("backend=%s blocks=%d block-size=%d capacity=%d dist=%s ops=%d seed=%d\n",
		o.backend, o.blocks, o.blockSize, o.capacity, o.dist, o.ops, o.seed)

	start := time.Now()
	buf := make([]byte, o.blockSize)
	for i := 0; i < o.ops; i++ {
		if ctx.Err() != nil {
			break
		}
		id := gen.Next()
		write := coin.Float64() < o.writeRatio

		t0 := time.Now()
		hit := cache.Contains(id)
		if write {
			buf[0] = byte(i)
			err = cache.Write(ctx, id, buf)
		} else {
			_, err = cache.Read(ctx, id)
		}
		elapsed := time.Since(t0)

		if err != nil {
			fmt.Fprintf(os.Stderr, "block %d: %v\n", id, err)
			continue
		}
		if o.verbose {
			kind := "Miss"
			if hit {
				kind = "Hit"
			}
			op := "read"
			if write {
				op = "write"
			}
			fmt.Printf("%s block: %d, %s time: %.0f us\n", kind, id, op, float64(elapsed.Nanoseconds())/1e3)
		}
	}
	total := time.Since(start)

	if o.verbose {
		fmt.Printf("resident (most recent first): %v\n", cache.Resident())
		fmt.Printf("dirty: %v\n", cache.Dirty())
	}

	closeErr := cache.Close(context.WithoutCancel(ctx))
	report(cache.Stats(), metrics.GetStats(), total)
	return closeErr
}

func openStore(ctx context.Context, o options) (blockstore.Store, error) {
	codec, err := blockstore.ParseCodec(o.codec)
	if err != nil {
		return nil, err
	}

	switch o.backend {
	case "file":
		return openFileStore(o)
	case "memory":
		return blockstore.NewMemoryStore(o.blockSize, o.blocks), nil
	case "minio":
		client, err := minio.New(o.endpoint, &minio.Options{
			Creds:  credentials.NewEnvMinio(),
			Secure: !o.insecure,
		})
		if err != nil {
			return nil, err
		}
		if err := ensureBucket(ctx, client, o.bucket); err != nil {
			return nil, err
		}
		return miniostore.NewStore(client, o.bucket, o.prefix, func(mo *miniostore.Options) {
			mo.BlockSize = o.blockSize
			mo.NumBlocks = o.blocks
			mo.Codec = codec
		}), nil
	case "s3":
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		return s3store.NewStore(s3.NewFromConfig(cfg), o.bucket, o.prefix, func(so *s3store.Options) {
			so.BlockSize = o.blockSize
			so.NumBlocks = o.blocks
			so.Codec = codec
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", o.backend)
	}
}

func openFileStore(o options) (blockstore.Store, error) {
	if _, err := os.Stat(o.file); o.format || errors.Is(err, os.ErrNotExist) {
		if err := blockstore.Format(o.file, o.blocks, o.blockSize, nil); err != nil {
			return nil, err
		}
	}

	open := func(direct bool) (*blockstore.FileStore, error) {
		return blockstore.OpenFile(o.file, func(fo *blockstore.FileOptions) {
			fo.BlockSize = o.blockSize
			fo.NumBlocks = o.blocks
			fo.Direct = direct
		})
	}

	s, err := open(o.direct)
	if err != nil && o.direct {
		// tmpfs and some network filesystems reject O_DIRECT.
		log.Printf("direct I/O unavailable (%v), using buffered I/O", err)
		s, err = open(false)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	ok, err := client.BucketExists(ctx, bucket)
	if err != nil || ok {
		return err
	}
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

func report(s blockcache.Stats, m blockcache.BasicMetricsStats, total time.Duration) {
	fmt.Printf("Hit rate: %.2f%%\n", s.HitRatio()*100)
	fmt.Printf("hit_count: %d\n", s.Hits)
	fmt.Printf("miss_count: %d\n", s.Misses)
	fmt.Printf("writes: %d\n", s.Writes)
	fmt.Printf("evictions: %d (dirty %d)\n", s.Evictions, s.DirtyEvictions)
	fmt.Printf("flushed blocks: %d (failed %d)\n", s.FlushedBlocks, s.FlushFailures)
	fmt.Printf("avg hit latency: %.1f us\n", float64(m.HitAvgNanos)/1e3)
	fmt.Printf("avg miss latency: %.1f us\n", float64(m.MissAvgNanos)/1e3)
	fmt.Printf("total time: %s\n", total)
}

// teeCollector forwards to two collectors.
type teeCollector struct {
	a, b blockcache.MetricsCollector
}

func (t teeCollector) RecordRead(hit bool, d time.Duration, err error) {
	t.a.RecordRead(hit, d, err)
	t.b.RecordRead(hit, d, err)
}

func (t teeCollector) RecordWrite(d time.Duration, err error) {
	t.a.RecordWrite(d, err)
	t.b.RecordWrite(d, err)
}

func (t teeCollector) RecordEviction(dirty bool, err error) {
	t.a.RecordEviction(dirty, err)
	t.b.RecordEviction(dirty, err)
}

func (t teeCollector) RecordFlush(blocks, failed int, d time.Duration) {
	t.a.RecordFlush(blocks, failed, d)
	t.b.RecordFlush(blocks, failed, d)
}
