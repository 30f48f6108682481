// Package config 负责加载和验证 YAML 配置文件。
// 提供宿主进程所需的配置项，包括模式开关、各引擎参数、行情源与输出设置。
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"arbitrage-cache-engine/internal/mode"
)

// Config 应用配置根结构
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Mode 运行模式配置
	Mode ModeConfig `yaml:"mode"`
	// Dedup 帧去重配置
	Dedup DedupConfig `yaml:"dedup"`
	// Aggregator 价格聚合器配置
	Aggregator AggregatorConfig `yaml:"aggregator"`
	// Scanner 机会扫描器配置
	Scanner ScannerConfig `yaml:"scanner"`
	// Stats 统计配置
	Stats StatsConfig `yaml:"stats"`
	// Feed 行情源配置
	Feed FeedConfig `yaml:"feed"`
	// Output 输出配置
	Output OutputConfig `yaml:"output"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// ModeConfig 运行模式配置
type ModeConfig struct {
	// Lightweight 是否启用轻量模式（必须在构造引擎前生效）
	Lightweight bool `yaml:"lightweight"`
}

// DedupConfig 帧去重配置
type DedupConfig struct {
	// Disabled 关闭帧级去重
	Disabled bool `yaml:"disabled"`
}

// AggregatorConfig 价格聚合器配置
type AggregatorConfig struct {
	// CacheTimeoutMs 缓存超时（毫秒），轻量模式下构造时减半
	CacheTimeoutMs int64 `yaml:"cache_timeout_ms"`
}

// ScannerConfig 机会扫描器配置
type ScannerConfig struct {
	// MinProfitBps 最小利润阈值（基点）
	MinProfitBps int32 `yaml:"min_profit_bps"`
}

// StatsConfig 统计配置
type StatsConfig struct {
	// WindowSize 节拍耗时滚动窗口大小
	WindowSize int `yaml:"window_size"`
}

// FeedConfig 行情源 WebSocket 配置
type FeedConfig struct {
	// URL WebSocket 地址（ws:// 或 wss://）
	URL string `yaml:"url"`
	// PingIntervalMs 心跳间隔（毫秒）
	PingIntervalMs int `yaml:"ping_interval_ms"`
	// ReadTimeoutMs 读取超时（毫秒）
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
	// ReconnectBaseMs 重连退避起始间隔（毫秒）
	ReconnectBaseMs int `yaml:"reconnect_base_ms"`
	// ReconnectMaxMs 重连退避上限（毫秒）
	ReconnectMaxMs int `yaml:"reconnect_max_ms"`
	// ChannelSize 节拍输出通道容量
	ChannelSize int `yaml:"channel_size"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir"`
	// OpportunitiesEnabled 是否输出通过过滤的机会
	OpportunitiesEnabled bool `yaml:"opportunities_enabled"`
	// MediansEnabled 是否输出交易对中位价
	MediansEnabled bool `yaml:"medians_enabled"`
	// MetricsEnabled 是否输出指标快照
	MetricsEnabled bool `yaml:"metrics_enabled"`
	// MetricsIntervalMs 指标输出间隔（毫秒），未配置时取模式档位的清理间隔
	MetricsIntervalMs int `yaml:"metrics_interval_ms"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 从 YAML 字节解析配置，设置默认值并验证
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return &cfg, nil
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "arbitrage-cache-engine"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	if c.Aggregator.CacheTimeoutMs == 0 {
		c.Aggregator.CacheTimeoutMs = 10000 // 10 秒
	}

	if c.Stats.WindowSize == 0 {
		c.Stats.WindowSize = 10000
	}

	if c.Feed.PingIntervalMs == 0 {
		c.Feed.PingIntervalMs = 20000 // 20 秒
	}
	if c.Feed.ReadTimeoutMs == 0 {
		c.Feed.ReadTimeoutMs = 30000 // 30 秒
	}
	if c.Feed.ReconnectBaseMs == 0 {
		c.Feed.ReconnectBaseMs = 1000
	}
	if c.Feed.ReconnectMaxMs == 0 {
		c.Feed.ReconnectMaxMs = 30000
	}
	if c.Feed.ChannelSize == 0 {
		c.Feed.ChannelSize = 1000
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.MetricsIntervalMs == 0 {
		c.Output.MetricsIntervalMs = int(mode.NewProfile(c.Mode.Lightweight).GCIntervalMs)
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}
}

// Validate 验证配置合法性
// 返回: 若配置无效则返回包含全部问题的错误
func (c *Config) Validate() error {
	var errs []string

	if c.Aggregator.CacheTimeoutMs <= 0 {
		errs = append(errs, "aggregator.cache_timeout_ms: 缓存超时必须为正数")
	}
	if c.Scanner.MinProfitBps < 0 {
		errs = append(errs, "scanner.min_profit_bps: 利润阈值不能为负数")
	}
	if c.Stats.WindowSize < 0 {
		errs = append(errs, "stats.window_size: 窗口大小不能为负数")
	}

	if err := validateWSURL(c.Feed.URL, "feed.url"); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Feed.PingIntervalMs < 0 {
		errs = append(errs, "feed.ping_interval_ms: 心跳间隔不能为负数")
	}
	if c.Feed.ReadTimeoutMs <= 0 {
		errs = append(errs, "feed.read_timeout_ms: 读取超时必须为正数")
	}
	if c.Feed.ReconnectBaseMs <= 0 {
		errs = append(errs, "feed.reconnect_base_ms: 重连间隔必须为正数")
	}
	if c.Feed.ReconnectMaxMs < c.Feed.ReconnectBaseMs {
		errs = append(errs, "feed.reconnect_max_ms: 重连上限不能小于起始间隔")
	}
	if c.Feed.ChannelSize <= 0 {
		errs = append(errs, "feed.channel_size: 通道容量必须为正数")
	}

	if c.Output.MetricsIntervalMs <= 0 {
		errs = append(errs, "output.metrics_interval_ms: 指标间隔必须为正数")
	}
	if c.Output.BufferSize <= 0 {
		errs = append(errs, "output.buffer_size: 缓冲区大小必须为正数")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// validateWSURL 验证 WebSocket 地址
// 参数 raw: 地址字符串
// 参数 field: 字段名称，用于错误消息
func validateWSURL(raw, field string) error {
	if raw == "" {
		return fmt.Errorf("%s: WebSocket 地址不能为空", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: 无法解析地址 '%s': %v", field, raw, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%s: 协议必须为 ws 或 wss，当前值: %s", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: 缺少主机名", field)
	}
	return nil
}

// Profile 返回配置对应的模式档位
func (c *Config) Profile() mode.Profile {
	return mode.NewProfile(c.Mode.Lightweight)
}
