// internal/engine/batch/concurrency.go
package batch

import (
	"runtime"
)

// maxConcurrency caps auto-tuned concurrency. Fetches may open browser
// tabs, so the cap is lower than for plain HTTP work.
const maxConcurrency = 16

// OptimalConcurrency calculates a concurrency based on CPU and memory
func OptimalConcurrency() int {
	numCPU := runtime.NumCPU()

	// Mostly waiting on the network, so oversubscribe the CPUs
	optimal := numCPU * 2

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	availMB := (m.Sys - m.Alloc) / 1024 / 1024

	// Assume ~50MB per browser context when rendering
	maxByMemory := int(availMB / 50)

	if optimal > maxConcurrency {
		optimal = maxConcurrency
	}
	if maxByMemory > 0 && maxByMemory < optimal {
		optimal = maxByMemory
	}
	if optimal < 1 {
		optimal = 1
	}
	return optimal
}
