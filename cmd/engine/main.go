// Package main 是套利缓存引擎的入口点。
// 从 WebSocket 行情源接收帧，经帧去重、价格聚合与机会扫描后写出 JSONL。
//
// 发送 SIGUSR1 可在运行时切换轻量模式（已构造的去重容量与聚合超时不变）。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"arbitrage-cache-engine/internal/config"
	"arbitrage-cache-engine/internal/core/aggregator"
	"arbitrage-cache-engine/internal/core/dedup"
	"arbitrage-cache-engine/internal/core/model"
	"arbitrage-cache-engine/internal/core/scanner"
	"arbitrage-cache-engine/internal/feed"
	"arbitrage-cache-engine/internal/mode"
	"arbitrage-cache-engine/internal/output/jsonl"
	"arbitrage-cache-engine/internal/pipeline"
	"arbitrage-cache-engine/internal/stats/ticklat"
	"arbitrage-cache-engine/internal/util/timeutil"
)

type metricsSnapshot struct {
	// RunID 运行标识
	RunID string `json:"run_id"`
	// TsUnixMs 指标采集时间（毫秒）
	TsUnixMs int64 `json:"ts_unix_ms"`
	// Feed 行情源连接指标
	Feed feed.ConnectionMetrics `json:"feed"`
	// Engine 引擎状态
	Engine pipeline.Snapshot `json:"engine"`
	// Output 各输出文件计数
	Output map[string]jsonl.Counters `json:"output,omitempty"`
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App.LogLevel).Named(cfg.App.Name)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("运行失败", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 模式必须在构造引擎之前确定
	sw := mode.New(cfg.Mode.Lightweight)
	logger.Info("运行模式", zap.String("mode", sw.Profile().Description()))

	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
	defer ossignal.Stop(sigCh)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGUSR1 {
				sw.Set(!sw.Enabled())
				logger.Info("切换运行模式", zap.String("mode", sw.Profile().Description()))
				continue
			}
			logger.Info("收到退出信号，开始优雅关闭")
			cancel()
			return
		}
	}()

	var d *dedup.Deduplicator
	if !cfg.Dedup.Disabled {
		d = dedup.New(sw)
		logger.Info("帧去重已启用", zap.Int("max_size", d.MaxSize()))
	}
	agg := aggregator.New(sw, cfg.Aggregator.CacheTimeoutMs)
	scan := scanner.New(sw, cfg.Scanner.MinProfitBps)
	logger.Info("引擎参数",
		zap.Int64("cache_timeout_ms", agg.CacheTimeoutMs()),
		zap.Int64("dedup_window_ms", agg.DedupWindowMs()),
		zap.Int32("min_profit_bps", scan.MinProfitBps()),
	)
	p := pipeline.New(sw, d, agg, scan, ticklat.NewTracker(cfg.Stats.WindowSize), logger)

	runID := uuid.NewString()
	sink, err := jsonl.NewSink(runID, jsonl.SinkOptions{
		Dir:                  cfg.Output.Dir,
		BufferSize:           cfg.Output.BufferSize,
		OpportunitiesEnabled: cfg.Output.OpportunitiesEnabled,
		MediansEnabled:       cfg.Output.MediansEnabled,
		MetricsEnabled:       cfg.Output.MetricsEnabled,
	})
	if err != nil {
		return fmt.Errorf("创建输出失败: %w", err)
	}
	logger.Info("输出已就绪", zap.String("run_id", runID), zap.String("dir", cfg.Output.Dir))

	client := feed.NewClient(&cfg.Feed, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(gctx)
	})
	g.Go(func() error {
		return processLoop(gctx, logger, sw, p, client, sink, cfg.Output.MetricsIntervalMs)
	})

	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("处理循环退出", zap.Error(runErr))
	}

	// 输出最后一条 metrics 快照
	_ = sink.WriteMetrics(newMetricsSnapshot(runID, client, p, sink))

	// 优雅关闭（10s 超时）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = client.Close()
		if err := sink.Close(); err != nil {
			logger.Warn("关闭输出失败", zap.Error(err))
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("关闭超时，强制退出")
	case <-done:
		logger.Info("关闭完成", zap.Any("engine", p.Snapshot()))
	}
	return nil
}

func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func processLoop(
	ctx context.Context,
	logger *zap.Logger,
	sw *mode.Switch,
	p *pipeline.Pipeline,
	client *feed.Client,
	sink *jsonl.Sink,
	metricsIntervalMs int,
) error {
	metricsInterval := time.Duration(metricsIntervalMs) * time.Millisecond
	if metricsInterval <= 0 {
		metricsInterval = sw.Profile().GCInterval()
	}
	metricsTicker := time.NewTicker(metricsInterval)
	defer metricsTicker.Stop()

	// 输出刷盘间隔随模式档位缩短
	flushTicker := time.NewTicker(sw.Profile().ScanInterval(time.Second))
	defer flushTicker.Stop()

	tickCh := client.TickCh()
	for {
		select {
		case <-ctx.Done():
			return nil

		case tick, ok := <-tickCh:
			if !ok {
				return nil
			}
			batch := drainBatch(tick, tickCh, int(sw.Profile().BatchSize))
			for _, res := range p.ProcessBatch(batch) {
				if res.Duplicate {
					continue
				}
				sink.WriteOpportunities(res.TickID, res.NowMs, res.Opportunities)
				sink.WriteMedians(res.TickID, res.Medians)
			}

		case <-flushTicker.C:
			if err := sink.Flush(); err != nil {
				logger.Warn("刷新输出失败", zap.Error(err))
			}

		case <-metricsTicker.C:
			snap := newMetricsSnapshot(sink.RunID(), client, p, sink)
			if err := sink.WriteMetrics(snap); err != nil {
				logger.Warn("写出指标失败", zap.Error(err))
				continue
			}
			_ = sink.Flush()
			logger.Debug("指标快照",
				zap.Uint64("ticks", snap.Engine.Ticks),
				zap.Uint64("admitted", snap.Engine.AdmittedOpportunities),
				zap.String("total_profit", snap.Engine.TotalProfit),
				zap.Float64("p99_ms", snap.Engine.Latency.P99Ms),
			)
		}
	}
}

// drainBatch 以 first 开头，非阻塞地从 ch 继续取帧，最多 limit 个
func drainBatch(first *model.Tick, ch <-chan *model.Tick, limit int) []*model.Tick {
	if limit <= 1 {
		return []*model.Tick{first}
	}
	batch := make([]*model.Tick, 1, limit)
	batch[0] = first
	for len(batch) < limit {
		select {
		case t, ok := <-ch:
			if !ok {
				return batch
			}
			batch = append(batch, t)
		default:
			return batch
		}
	}
	return batch
}

func newMetricsSnapshot(runID string, client *feed.Client, p *pipeline.Pipeline, sink *jsonl.Sink) metricsSnapshot {
	return metricsSnapshot{
		RunID:    runID,
		TsUnixMs: timeutil.NowMs(),
		Feed:     client.Metrics(),
		Engine:   p.Snapshot(),
		Output:   sink.Counters(),
	}
}
