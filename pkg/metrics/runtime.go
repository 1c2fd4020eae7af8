package metrics

import (
	"runtime"
	"time"
)

// CollectRuntime samples Go runtime stats into gauges named
// <prefix>_goroutines, <prefix>_heap_alloc_bytes, <prefix>_heap_objects,
// and <prefix>_gc_cycles_total every interval. The sampler runs for the
// life of the process.
func (r *Registry) CollectRuntime(prefix string, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	goroutines := r.Gauge(prefix+"_goroutines", "Number of live goroutines")
	heapAlloc := r.Gauge(prefix+"_heap_alloc_bytes", "Bytes of allocated heap objects")
	heapObjects := r.Gauge(prefix+"_heap_objects", "Number of allocated heap objects")
	gcCycles := r.Gauge(prefix+"_gc_cycles_total", "Completed GC cycles")

	sample := func() {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		goroutines.Set(int64(runtime.NumGoroutine()))
		heapAlloc.Set(int64(ms.HeapAlloc))
		heapObjects.Set(int64(ms.HeapObjects))
		gcCycles.Set(int64(ms.NumGC))
	}
	sample()

	go func() {
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for range tick.C {
			sample()
		}
	}()
}
