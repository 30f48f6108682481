// Package dedup 实现有界的字符串键去重器。
// 容量在构造时由轻量模式决定；单键写入在满容量时整体淘汰，批量写入不淘汰。
package dedup

import (
	"sync"

	"arbitrage-cache-engine/internal/mode"
)

const (
	// MaxSizeLightweight 轻量模式下的容量
	MaxSizeLightweight = 5000
	// MaxSizeNormal 正常模式下的容量
	MaxSizeNormal = 20000
)

// Stats 去重统计（自上次 Clear 起单调递增）
type Stats struct {
	// HasAnyDuplicate 是否出现过重复
	HasAnyDuplicate bool `json:"has_any_duplicate"`
	// TotalChecked 检查总数
	TotalChecked uint64 `json:"total_checked"`
	// DuplicatesFound 重复数
	DuplicatesFound uint64 `json:"duplicates_found"`
	// CacheClears 满容量淘汰次数
	CacheClears uint64 `json:"cache_clears"`
}

// Deduplicator 有界去重器（并发安全）
// 淘汰不是 LRU：满容量时保留任意一部分键，其余丢弃，可能把旧键当作新键。
type Deduplicator struct {
	// sw 模式开关（每次淘汰时重新读取）
	sw *mode.Switch
	// maxSize 容量上限，构造后不变
	maxSize int

	mu   sync.RWMutex
	seen map[string]struct{}

	totalChecked    uint64
	duplicatesFound uint64
	cacheClears     uint64
}

// New 创建去重器
// 参数 sw: 模式开关；容量按构造时的模式档位取 5000（轻量）或 20000
func New(sw *mode.Switch) *Deduplicator {
	return newWithMaxSize(sw, int(sw.Profile().MaxCacheSize(MaxSizeNormal)))
}

func newWithMaxSize(sw *mode.Switch, maxSize int) *Deduplicator {
	return &Deduplicator{
		sw:      sw,
		maxSize: maxSize,
		seen:    make(map[string]struct{}),
	}
}

// CheckAndAdd 检查键是否已见过，未见过则记录
// 返回: true 表示重复（不插入）；false 表示新键（已插入）
func (d *Deduplicator) CheckAndAdd(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.totalChecked++
	if _, ok := d.seen[key]; ok {
		d.duplicatesFound++
		return true
	}

	if len(d.seen) >= d.maxSize {
		d.evictLocked()
	}

	d.seen[key] = struct{}{}
	return false
}

// CheckBatch 按输入顺序批量检查
// 批量路径不触发淘汰，缓存可能暂时超过容量，直到下一次 CheckAndAdd。
func (d *Deduplicator) CheckBatch(keys []string) []bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	results := make([]bool, len(keys))
	for i, key := range keys {
		d.totalChecked++
		if _, ok := d.seen[key]; ok {
			d.duplicatesFound++
			results[i] = true
			continue
		}
		d.seen[key] = struct{}{}
	}
	return results
}

// evictLocked 保留 maxSize/4（轻量）或 maxSize/2 个键，调用方须持有写锁
// 保留哪些键取决于 map 遍历顺序，不作保证。
func (d *Deduplicator) evictLocked() {
	keep := d.maxSize / 2
	if d.sw.Enabled() {
		keep = d.maxSize / 4
	}

	kept := make(map[string]struct{}, keep+1)
	for k := range d.seen {
		if len(kept) >= keep {
			break
		}
		kept[k] = struct{}{}
	}
	d.seen = kept
	d.cacheClears++
}

// Stats 返回统计快照
func (d *Deduplicator) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Stats{
		HasAnyDuplicate: d.duplicatesFound > 0,
		TotalChecked:    d.totalChecked,
		DuplicatesFound: d.duplicatesFound,
		CacheClears:     d.cacheClears,
	}
}

// CacheSize 返回当前缓存的键数
func (d *Deduplicator) CacheSize() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.seen)
}

// MaxSize 返回构造时确定的容量上限
func (d *Deduplicator) MaxSize() int {
	return d.maxSize
}

// Clear 清空缓存并重置所有计数
func (d *Deduplicator) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = make(map[string]struct{})
	d.totalChecked = 0
	d.duplicatesFound = 0
	d.cacheClears = 0
}

// MemorySavings 返回相对满容量节省的百分比
// 公式: 100 × (1 − size / maxSize)；maxSize 为 0 时返回 0
func (d *Deduplicator) MemorySavings() float64 {
	if d.maxSize == 0 {
		return 0
	}
	size := d.CacheSize()
	return 100 - float64(size)/float64(d.maxSize)*100
}
