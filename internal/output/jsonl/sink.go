package jsonl

import (
	"errors"
	"fmt"
	"path/filepath"

	"arbitrage-cache-engine/internal/core/model"
)

const (
	// OpportunitiesFile 通过过滤的机会
	OpportunitiesFile = "opportunities.jsonl"
	// MediansFile 交易对中位价
	MediansFile = "medians.jsonl"
	// MetricsFile 周期性指标快照
	MetricsFile = "metrics.jsonl"
)

// OpportunityRecord 机会输出记录
type OpportunityRecord struct {
	// RunID 运行标识
	RunID string `json:"run_id"`
	// TickID 来源帧
	TickID string `json:"tick_id"`
	// NowMs 节拍时间（毫秒）
	NowMs int64 `json:"now_ms"`
	// Fingerprint 机会指纹
	Fingerprint string `json:"fingerprint"`
	// Opportunity 机会本体
	Opportunity model.Opportunity `json:"opportunity"`
}

// MedianRecord 中位价输出记录
type MedianRecord struct {
	RunID  string            `json:"run_id"`
	TickID string            `json:"tick_id"`
	Quote  model.MedianQuote `json:"quote"`
}

// SinkOptions 输出开关
type SinkOptions struct {
	Dir                  string
	BufferSize           int
	OpportunitiesEnabled bool
	MediansEnabled       bool
	MetricsEnabled       bool
}

// Sink 按记录类型分发到各自的 JSONL 文件，未启用的类型直接忽略
type Sink struct {
	runID   string
	opps    *Writer
	medians *Writer
	metrics *Writer
}

// NewSink 创建输出汇
// 参数 runID: 写入每条记录的运行标识
// 参数 opts: 输出目录与各类记录开关
func NewSink(runID string, opts SinkOptions) (*Sink, error) {
	s := &Sink{runID: runID}

	open := func(enabled bool, name string) (*Writer, error) {
		if !enabled {
			return nil, nil
		}
		return NewWriter(filepath.Join(opts.Dir, name), opts.BufferSize)
	}

	var err error
	if s.opps, err = open(opts.OpportunitiesEnabled, OpportunitiesFile); err != nil {
		return nil, err
	}
	if s.medians, err = open(opts.MediansEnabled, MediansFile); err != nil {
		_ = s.Close()
		return nil, err
	}
	if s.metrics, err = open(opts.MetricsEnabled, MetricsFile); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// RunID 返回运行标识
func (s *Sink) RunID() string {
	return s.runID
}

// WriteOpportunities 写出一帧通过过滤的机会（队列满时丢弃）
func (s *Sink) WriteOpportunities(tickID string, nowMs int64, opps []model.Opportunity) {
	if s.opps == nil {
		return
	}
	for i := range opps {
		s.opps.TryWrite(OpportunityRecord{
			RunID:       s.runID,
			TickID:      tickID,
			NowMs:       nowMs,
			Fingerprint: opps[i].Fingerprint(),
			Opportunity: opps[i],
		})
	}
}

// WriteMedians 写出一帧的交易对中位价（队列满时丢弃）
func (s *Sink) WriteMedians(tickID string, quotes []model.MedianQuote) {
	if s.medians == nil {
		return
	}
	for i := range quotes {
		s.medians.TryWrite(MedianRecord{RunID: s.runID, TickID: tickID, Quote: quotes[i]})
	}
}

// WriteMetrics 写出一条指标快照（阻塞投递）
func (s *Sink) WriteMetrics(rec any) error {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.Write(rec)
}

// Counters 返回各文件的写入计数，key 为文件名
func (s *Sink) Counters() map[string]Counters {
	out := make(map[string]Counters, 3)
	for name, w := range s.writers() {
		out[name] = w.Counters()
	}
	return out
}

// Flush 刷新全部已启用的文件
func (s *Sink) Flush() error {
	var errs []error
	for name, w := range s.writers() {
		if err := w.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Close 关闭全部已启用的文件
func (s *Sink) Close() error {
	var errs []error
	for name, w := range s.writers() {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Sink) writers() map[string]*Writer {
	m := make(map[string]*Writer, 3)
	if s.opps != nil {
		m[OpportunitiesFile] = s.opps
	}
	if s.medians != nil {
		m[MediansFile] = s.medians
	}
	if s.metrics != nil {
		m[MetricsFile] = s.metrics
	}
	return m
}
