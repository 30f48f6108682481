// Package ticklat 节拍耗时追踪器测试
package ticklat

import (
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// **Feature: arbitrage-cache-engine, Property 8: Tick Latency Percentiles**

func TestTracker_Percentiles_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("P50/P90/P99 与排序分位数一致", prop.ForAll(
		func(durMs []int64) bool {
			tr := NewTracker(1000)
			for _, ms := range durMs {
				tr.Add(ms * 1_000_000)
			}

			sorted := append([]int64(nil), durMs...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

			s := tr.Stats()
			n := len(sorted)
			return s.Count == int64(n) &&
				approx(s.P50Ms, float64(sorted[int(float64(n-1)*0.50)])) &&
				approx(s.P90Ms, float64(sorted[int(float64(n-1)*0.90)])) &&
				approx(s.P99Ms, float64(sorted[int(float64(n-1)*0.99)])) &&
				approx(s.MaxMs, float64(sorted[n-1]))
		},
		gen.SliceOfN(20, gen.Int64Range(0, 5000)),
	))

	properties.TestingRun(t)
}

func TestTracker_Empty(t *testing.T) {
	s := NewTracker(10).Stats()
	if s != (Stats{}) {
		t.Fatalf("空追踪器 Stats=%+v", s)
	}
}

func TestTracker_WindowRolls(t *testing.T) {
	tr := NewTracker(2)
	tr.Add(100 * 1_000_000)
	tr.Add(1 * 1_000_000)
	tr.Add(2 * 1_000_000) // 覆盖 100ms

	s := tr.Stats()
	if s.Count != 3 {
		t.Fatalf("Count=%d, want 3", s.Count)
	}
	if !approx(s.MaxMs, 2) {
		t.Fatalf("MaxMs=%f, want 2（旧样本应滚出窗口）", s.MaxMs)
	}
}

func TestTracker_ZeroWindowOnlyCounts(t *testing.T) {
	tr := NewTracker(0)
	tr.Add(5)
	if s := tr.Stats(); s.Count != 1 || s.P50Ms != 0 {
		t.Fatalf("Stats=%+v", s)
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker(64)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				tr.Add(int64(i))
				_ = tr.Stats()
			}
		}()
	}
	wg.Wait()
	if got := tr.Stats().Count; got != 1000 {
		t.Fatalf("Count=%d, want 1000", got)
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}
