// Package aggregator 实现带时间窗口去重的价格聚合器。
// 每个 (token_a, token_b, source) 仅缓存最近一次被接受的观测及其时间。
package aggregator

import (
	"cmp"
	"slices"
	"sync"

	"arbitrage-cache-engine/internal/core/model"
	"arbitrage-cache-engine/internal/mode"
	"arbitrage-cache-engine/internal/util/fastparse"
)

const (
	// DedupWindowMs 去重窗口（毫秒），窗口内的重复观测直接丢弃
	DedupWindowMs int64 = 5000

	// baseMemoryBytes 空缓存的估算开销
	baseMemoryBytes = 48
	// entryMemoryBytes 每条缓存的估算开销
	entryMemoryBytes = 256
)

type cachedPrice struct {
	data      model.PriceData
	timestamp int64
}

// Aggregator 价格聚合器（并发安全）
type Aggregator struct {
	// sw 模式开关（每次聚合时重新读取以决定是否清扫）
	sw *mode.Switch
	// cacheTimeoutMs 缓存超时（毫秒），轻量模式构造时减半
	cacheTimeoutMs int64
	// dedupWindowMs 去重窗口（毫秒）
	dedupWindowMs int64

	mu    sync.RWMutex
	cache map[model.PriceKey]cachedPrice
}

// New 创建价格聚合器
// 参数 sw: 模式开关
// 参数 cacheTimeoutMs: 缓存超时（毫秒）；构造时处于轻量模式则减半
func New(sw *mode.Switch, cacheTimeoutMs int64) *Aggregator {
	if sw.Enabled() {
		cacheTimeoutMs /= 2
	}
	return &Aggregator{
		sw:             sw,
		cacheTimeoutMs: cacheTimeoutMs,
		dedupWindowMs:  DedupWindowMs,
		cache:          make(map[model.PriceKey]cachedPrice),
	}
}

// AggregatePrices 按输入顺序聚合价格观测
// 参数 prices: 价格观测
// 参数 nowMs: 当前时间（毫秒），调用序列内应单调不减
// 返回: 输出序列，保持被接受项的相对顺序
//
// 每条观测依次判断：
//   - 缓存年龄 < 去重窗口：丢弃
//   - 缓存年龄 < 缓存超时：输出缓存值
//   - 否则：缓存新观测并输出
func (a *Aggregator) AggregatePrices(prices []model.PriceData, nowMs int64) []model.PriceData {
	lightweight := a.sw.Enabled()

	a.mu.Lock()
	defer a.mu.Unlock()

	if lightweight {
		a.evictOldLocked(nowMs)
	}

	out := make([]model.PriceData, 0, len(prices))
	for _, p := range prices {
		key := p.Key()

		if cached, ok := a.cache[key]; ok {
			age := nowMs - cached.timestamp
			if age < a.dedupWindowMs {
				continue
			}
			if age < a.cacheTimeoutMs {
				out = append(out, cached.data)
				continue
			}
		}

		a.cache[key] = cachedPrice{data: p, timestamp: nowMs}
		out = append(out, p)
	}
	return out
}

// evictOldLocked 删除年龄 ≥ 缓存超时的条目，调用方须持有写锁
func (a *Aggregator) evictOldLocked(nowMs int64) {
	for k, v := range a.cache {
		if nowMs-v.timestamp >= a.cacheTimeoutMs {
			delete(a.cache, k)
		}
	}
}

// MedianPrice 计算中位价
// 价格字符串解析失败的观测被排除；升序排序后取下标 n/2（偶数个时取上中位数）。
// 返回: 中位数观测及是否存在；空输入或无可解析价格时返回 false
func MedianPrice(prices []model.PriceData) (model.PriceData, bool) {
	switch len(prices) {
	case 0:
		return model.PriceData{}, false
	case 1:
		return prices[0], true
	}

	type valued struct {
		v   float64
		idx int
	}
	vals := make([]valued, 0, len(prices))
	for i := range prices {
		v, err := fastparse.ParseFloat(prices[i].Price)
		if err != nil {
			continue
		}
		vals = append(vals, valued{v: v, idx: i})
	}
	if len(vals) == 0 {
		return model.PriceData{}, false
	}

	slices.SortStableFunc(vals, func(x, y valued) int { return cmp.Compare(x.v, y.v) })
	return prices[vals[len(vals)/2].idx], true
}

// MedianPrice 计算中位价，见包级 MedianPrice
func (a *Aggregator) MedianPrice(prices []model.PriceData) (model.PriceData, bool) {
	return MedianPrice(prices)
}

// CacheSize 返回缓存条目数
func (a *Aggregator) CacheSize() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.cache)
}

// ClearCache 清空缓存
func (a *Aggregator) ClearCache() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache = make(map[model.PriceKey]cachedPrice)
}

// MemoryUsage 估算缓存占用的字节数（粗略模型：固定开销 + 每条固定开销）
func (a *Aggregator) MemoryUsage() uint64 {
	return baseMemoryBytes + uint64(a.CacheSize())*entryMemoryBytes
}

// CacheTimeoutMs 返回构造时确定的缓存超时（毫秒）
func (a *Aggregator) CacheTimeoutMs() int64 {
	return a.cacheTimeoutMs
}

// DedupWindowMs 返回去重窗口（毫秒）
func (a *Aggregator) DedupWindowMs() int64 {
	return a.dedupWindowMs
}
