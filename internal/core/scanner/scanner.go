// Package scanner 实现套利机会的利润过滤与指纹去重。
package scanner

import (
	"sync"

	"arbitrage-cache-engine/internal/core/model"
	"arbitrage-cache-engine/internal/mode"
)

// LightweightSeenLimit 轻量模式下已见指纹集合的软上限
// 超过后在记录下一个指纹前整体清空（不是部分淘汰）。
const LightweightSeenLimit = 1000

// Scanner 机会扫描器（并发安全）
type Scanner struct {
	// sw 模式开关（每次过滤时重新读取）
	sw *mode.Switch
	// minProfitBps 最小利润阈值（基点）
	minProfitBps int32

	mu        sync.RWMutex
	seen      map[string]struct{}
	scanCount uint64
}

// New 创建机会扫描器
// 参数 sw: 模式开关
// 参数 minProfitBps: 最小利润阈值（基点），低于该值的机会被丢弃
func New(sw *mode.Switch, minProfitBps int32) *Scanner {
	return &Scanner{
		sw:           sw,
		minProfitBps: minProfitBps,
		seen:         make(map[string]struct{}),
	}
}

// FilterOpportunities 过滤候选机会
// 每次调用扫描计数 +1；按输入顺序依次丢弃低利润与已见指纹的机会。
// 返回: 通过过滤的机会（深拷贝），保持输入中的相对顺序
func (s *Scanner) FilterOpportunities(opps []model.Opportunity) []model.Opportunity {
	lightweight := s.sw.Enabled()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scanCount++

	var out []model.Opportunity
	if !lightweight {
		out = make([]model.Opportunity, 0, len(opps))
	}

	for i := range opps {
		opp := &opps[i]
		if opp.ProfitBps < s.minProfitBps {
			continue
		}

		fp := opp.Fingerprint()
		if _, ok := s.seen[fp]; ok {
			continue
		}

		if lightweight && len(s.seen) > LightweightSeenLimit {
			s.seen = make(map[string]struct{})
		}

		s.seen[fp] = struct{}{}
		out = append(out, opp.Clone())
	}
	return out
}

// ScanCount 返回自上次 Reset 起的扫描次数
func (s *Scanner) ScanCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanCount
}

// Reset 清空已见指纹并将扫描计数归零
func (s *Scanner) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[string]struct{})
	s.scanCount = 0
}

// CacheSize 返回已见指纹数
func (s *Scanner) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// MinProfitBps 返回最小利润阈值（基点）
func (s *Scanner) MinProfitBps() int32 {
	return s.minProfitBps
}
