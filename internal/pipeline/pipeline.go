// Package pipeline 将帧去重、价格聚合与机会扫描串联为一次节拍处理。
package pipeline

import (
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arbitrage-cache-engine/internal/core/aggregator"
	"arbitrage-cache-engine/internal/core/dedup"
	"arbitrage-cache-engine/internal/core/model"
	"arbitrage-cache-engine/internal/core/scanner"
	"arbitrage-cache-engine/internal/mode"
	"arbitrage-cache-engine/internal/stats/ticklat"
	"arbitrage-cache-engine/internal/util/timeutil"
)

// Result 单个节拍的处理结果
type Result struct {
	// TickID 帧标识
	TickID string
	// NowMs 节拍时间（毫秒）
	NowMs int64
	// Duplicate 是否为重复帧（重复帧不做后续处理）
	Duplicate bool
	// Prices 聚合后的价格观测
	Prices []model.PriceData
	// Medians 各交易对中位价，按首次出现顺序
	Medians []model.MedianQuote
	// Opportunities 通过过滤的机会
	Opportunities []model.Opportunity
	// ProcessNs 处理耗时（纳秒）
	ProcessNs int64
}

// Snapshot 引擎状态快照
type Snapshot struct {
	// Mode 模式描述
	Mode string `json:"mode"`
	// Profile 当前模式档位
	Profile mode.Profile `json:"profile"`
	// Ticks 已处理节拍数（含重复帧）
	Ticks uint64 `json:"ticks"`
	// DuplicateTicks 重复帧数
	DuplicateTicks uint64 `json:"duplicate_ticks"`
	// AdmittedOpportunities 通过过滤的机会数
	AdmittedOpportunities uint64 `json:"admitted_opportunities"`
	// TotalProfit 通过过滤的机会利润合计（十进制字符串）
	TotalProfit string `json:"total_profit"`
	// UnparsedProfits 利润无法解析而未计入合计的机会数
	UnparsedProfits uint64 `json:"unparsed_profits"`
	// Dedup 帧去重统计（帧去重关闭时为零值）
	Dedup dedup.Stats `json:"dedup"`
	// DedupCacheSize 帧去重集合大小
	DedupCacheSize int `json:"dedup_cache_size"`
	// DedupMemorySavings 帧去重容量节省百分比
	DedupMemorySavings float64 `json:"dedup_memory_savings"`
	// AggregatorCacheSize 价格缓存键数
	AggregatorCacheSize int `json:"aggregator_cache_size"`
	// AggregatorMemoryBytes 价格缓存估算内存（字节）
	AggregatorMemoryBytes uint64 `json:"aggregator_memory_bytes"`
	// ScanCount 扫描次数
	ScanCount uint64 `json:"scan_count"`
	// ScannerCacheSize 已见指纹数
	ScannerCacheSize int `json:"scanner_cache_size"`
	// Latency 节拍处理耗时
	Latency ticklat.Stats `json:"latency"`
}

// Pipeline 节拍处理管线（并发安全）
type Pipeline struct {
	sw      *mode.Switch
	dedup   *dedup.Deduplicator
	agg     *aggregator.Aggregator
	scanner *scanner.Scanner
	lat     *ticklat.Tracker
	logger  *zap.Logger

	mu          sync.Mutex
	totalProfit decimal.Decimal
	ticks       uint64
	duplicates  uint64
	admitted    uint64
	badProfits  uint64
}

// New 创建处理管线
// 参数 sw: 模式开关（与引擎共享）
// 参数 d: 帧去重器，nil 表示不做帧级去重
// 参数 a: 价格聚合器
// 参数 s: 机会扫描器
// 参数 lat: 耗时追踪器
// 参数 logger: 日志记录器
func New(sw *mode.Switch, d *dedup.Deduplicator, a *aggregator.Aggregator, s *scanner.Scanner, lat *ticklat.Tracker, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		sw:          sw,
		dedup:       d,
		agg:         a,
		scanner:     s,
		lat:         lat,
		logger:      logger.Named("pipeline"),
		totalProfit: decimal.Zero,
	}
}

// Process 处理单个节拍
func (p *Pipeline) Process(tick *model.Tick) Result {
	start := timeutil.NowNano()
	dup := p.dedup != nil && p.dedup.CheckAndAdd(tick.ID)
	return p.run(tick, dup, start)
}

// ProcessBatch 按顺序处理一批节拍
// 帧去重集合剩余容量足够时整批检查（不触发淘汰），否则逐帧检查。
func (p *Pipeline) ProcessBatch(ticks []*model.Tick) []Result {
	out := make([]Result, 0, len(ticks))
	if len(ticks) == 0 {
		return out
	}

	start := timeutil.NowNano()
	var dups []bool
	if p.dedup != nil && p.dedup.CacheSize()+len(ticks) < p.dedup.MaxSize() {
		ids := make([]string, len(ticks))
		for i, t := range ticks {
			ids[i] = t.ID
		}
		dups = p.dedup.CheckBatch(ids)
	}

	for i, t := range ticks {
		if i > 0 {
			start = timeutil.NowNano()
		}
		if dups != nil {
			out = append(out, p.run(t, dups[i], start))
			continue
		}
		dup := p.dedup != nil && p.dedup.CheckAndAdd(t.ID)
		out = append(out, p.run(t, dup, start))
	}
	return out
}

func (p *Pipeline) run(tick *model.Tick, duplicate bool, startNs int64) Result {
	res := Result{TickID: tick.ID, NowMs: tick.NowMs, Duplicate: duplicate}

	if duplicate {
		p.mu.Lock()
		p.ticks++
		p.duplicates++
		p.mu.Unlock()
		p.logger.Debug("跳过重复帧", zap.String("id", tick.ID))
		return res
	}

	res.Prices = p.agg.AggregatePrices(tick.Prices, tick.NowMs)
	res.Medians = p.medians(res.Prices, tick.NowMs)
	res.Opportunities = p.scanner.FilterOpportunities(tick.Opportunities)

	var sum decimal.Decimal
	var bad uint64
	for i := range res.Opportunities {
		v, err := decimal.NewFromString(res.Opportunities[i].Profit)
		if err != nil {
			bad++
			continue
		}
		sum = sum.Add(v)
	}

	res.ProcessNs = timeutil.SinceNano(startNs)
	if p.lat != nil {
		p.lat.Add(res.ProcessNs)
	}

	p.mu.Lock()
	p.ticks++
	p.admitted += uint64(len(res.Opportunities))
	p.badProfits += bad
	p.totalProfit = p.totalProfit.Add(sum)
	p.mu.Unlock()

	if bad > 0 {
		p.logger.Debug("机会利润无法解析，未计入合计", zap.String("id", tick.ID), zap.Uint64("count", bad))
	}
	return res
}

// medians 按交易对分组计算中位价
func (p *Pipeline) medians(prices []model.PriceData, nowMs int64) []model.MedianQuote {
	if len(prices) == 0 {
		return nil
	}

	var order []model.PairKey
	groups := make(map[model.PairKey][]model.PriceData)
	for i := range prices {
		k := prices[i].Pair()
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], prices[i])
	}

	out := make([]model.MedianQuote, 0, len(order))
	for _, k := range order {
		m, ok := p.agg.MedianPrice(groups[k])
		if !ok {
			continue
		}
		out = append(out, model.MedianQuote{
			TokenA:  k.TokenA,
			TokenB:  k.TokenB,
			Median:  m,
			Sources: len(groups[k]),
			NowMs:   nowMs,
		})
	}
	return out
}

// TotalProfit 返回通过过滤的机会利润合计
func (p *Pipeline) TotalProfit() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalProfit
}

// Snapshot 返回引擎状态快照
func (p *Pipeline) Snapshot() Snapshot {
	profile := p.sw.Profile()

	p.mu.Lock()
	s := Snapshot{
		Mode:                  profile.Description(),
		Profile:               profile,
		Ticks:                 p.ticks,
		DuplicateTicks:        p.duplicates,
		AdmittedOpportunities: p.admitted,
		TotalProfit:           p.totalProfit.String(),
		UnparsedProfits:       p.badProfits,
	}
	p.mu.Unlock()

	if p.dedup != nil {
		s.Dedup = p.dedup.Stats()
		s.DedupCacheSize = p.dedup.CacheSize()
		s.DedupMemorySavings = p.dedup.MemorySavings()
	}
	s.AggregatorCacheSize = p.agg.CacheSize()
	s.AggregatorMemoryBytes = p.agg.MemoryUsage()
	s.ScanCount = p.scanner.ScanCount()
	s.ScannerCacheSize = p.scanner.CacheSize()
	if p.lat != nil {
		s.Latency = p.lat.Stats()
	}
	return s
}

// Reset 清空全部引擎缓存与管线计数
func (p *Pipeline) Reset() {
	if p.dedup != nil {
		p.dedup.Clear()
	}
	p.agg.ClearCache()
	p.scanner.Reset()

	p.mu.Lock()
	p.totalProfit = decimal.Zero
	p.ticks = 0
	p.duplicates = 0
	p.admitted = 0
	p.badProfits = 0
	p.mu.Unlock()
	p.logger.Info("管线状态已重置")
}
