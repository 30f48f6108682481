// Package ticklat 统计每个处理节拍的耗时分布。
// 维护定长滚动窗口，按需排序计算 P50/P90/P99。
package ticklat

import (
	"sort"
	"sync"

	"arbitrage-cache-engine/internal/util/timeutil"
)

// Stats 节拍耗时统计快照（毫秒）
type Stats struct {
	// Count 样本总数（累计，不受窗口限制）
	Count int64 `json:"count"`
	// P50Ms 窗口内 P50 耗时（毫秒）
	P50Ms float64 `json:"p50_ms"`
	// P90Ms 窗口内 P90 耗时（毫秒）
	P90Ms float64 `json:"p90_ms"`
	// P99Ms 窗口内 P99 耗时（毫秒）
	P99Ms float64 `json:"p99_ms"`
	// MaxMs 窗口内最大耗时（毫秒）
	MaxMs float64 `json:"max_ms"`
}

// Tracker 节拍耗时追踪器（并发安全）
type Tracker struct {
	mu    sync.Mutex
	size  int
	buf   []int64
	pos   int
	count int64
}

// NewTracker 创建追踪器
// 参数 windowSize: 滚动窗口大小；非正时只计数不保留样本
func NewTracker(windowSize int) *Tracker {
	if windowSize < 0 {
		windowSize = 0
	}
	return &Tracker{size: windowSize, buf: make([]int64, 0, windowSize)}
}

// Add 记录一次节拍耗时（纳秒）
func (t *Tracker) Add(durNs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.count++
	if t.size == 0 {
		return
	}
	if len(t.buf) < t.size {
		t.buf = append(t.buf, durNs)
		return
	}
	t.buf[t.pos] = durNs
	t.pos++
	if t.pos >= t.size {
		t.pos = 0
	}
}

// Stats 返回当前窗口的分位数快照
// 分位下标取 int((n-1)×q)。
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	out := Stats{Count: t.count}
	if len(t.buf) == 0 {
		t.mu.Unlock()
		return out
	}
	tmp := make([]int64, len(t.buf))
	copy(tmp, t.buf)
	t.mu.Unlock()

	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })
	out.P50Ms = timeutil.NanoToMs(tmp[quantileIdx(len(tmp), 0.50)])
	out.P90Ms = timeutil.NanoToMs(tmp[quantileIdx(len(tmp), 0.90)])
	out.P99Ms = timeutil.NanoToMs(tmp[quantileIdx(len(tmp), 0.99)])
	out.MaxMs = timeutil.NanoToMs(tmp[len(tmp)-1])
	return out
}

func quantileIdx(n int, q float64) int {
	idx := int(float64(n-1) * q)
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}
