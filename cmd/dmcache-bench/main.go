// Command dmcache-bench drives a dmcache.Cache with concurrent set/get
// traffic and reports throughput and hit rate, for sizing an allocator
// configuration against a workload before wiring it into a real service.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/colinmarc/dmcache"
)

func main() {
	var (
		maxMemory   = pflag.Int64("max-memory", 256<<20, "allocator memory budget in bytes")
		concurrency = pflag.Int("concurrency", 16, "number of cache segments")
		workers     = pflag.Int("workers", 8, "number of concurrent goroutines")
		keys        = pflag.Int("keys", 100_000, "distinct key space size")
		valueSize   = pflag.Int("value-size", 512, "bytes per value")
		duration    = pflag.Duration("duration", 5*time.Second, "how long to run")
		verbose     = pflag.BoolP("verbose", "v", false, "debug-level logging")
	)
	pflag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	c, err := dmcache.New(dmcache.Options{
		MaxMemorySize: int(*maxMemory),
		Concurrency:   *concurrency,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "new cache:", err)
		os.Exit(1)
	}
	defer c.Close()

	payload := make([]byte, *valueSize)
	rand.Read(payload)

	var ops, hits int64
	var mu sync.Mutex
	stop := time.After(*duration)

	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
				}

				key := fmt.Sprintf("key-%d", r.Intn(*keys))
				if r.Intn(10) == 0 {
					_ = c.Set(key, payload)
				} else if _, ok, _ := c.Get(key); ok {
					mu.Lock()
					hits++
					mu.Unlock()
				}

				mu.Lock()
				ops++
				mu.Unlock()
			}
		}(time.Now().UnixNano() + int64(w))
	}
	wg.Wait()

	stats := c.Stats()
	fmt.Printf("ops=%d hits=%d hit_ratio=%.2f%% entries=%d used_bytes=%d\n",
		ops, hits, 100*float64(hits)/float64(ops), c.ApproxSize(), c.UsedMemory())
	fmt.Printf("cache stats: puts=%d removes=%d evictions=%d\n",
		stats.Puts(), stats.Removes(), stats.Evictions())
}
