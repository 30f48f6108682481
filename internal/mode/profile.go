package mode

import (
	"fmt"
	"time"
)

// Profile 模式参数档位
type Profile struct {
	// Enabled 是否为轻量模式
	Enabled bool `json:"enabled"`
	// CacheSizeReduction 缓存容量缩减比例（0-1）
	CacheSizeReduction float64 `json:"cache_size_reduction"`
	// SpeedMultiplier 扫描加速倍数
	SpeedMultiplier float64 `json:"speed_multiplier"`
	// BatchSize 建议批大小
	BatchSize uint32 `json:"batch_size"`
	// GCIntervalMs 建议清理间隔（毫秒）
	GCIntervalMs int64 `json:"gc_interval_ms"`
}

// NewProfile 按模式生成参数档位
// 轻量模式：容量缩减 75%，扫描 3 倍速，批大小 100，每 30s 清理。
func NewProfile(enabled bool) Profile {
	if enabled {
		return Profile{
			Enabled:            true,
			CacheSizeReduction: 0.75,
			SpeedMultiplier:    3.0,
			BatchSize:          100,
			GCIntervalMs:       30000,
		}
	}
	return Profile{
		Enabled:            false,
		CacheSizeReduction: 0.0,
		SpeedMultiplier:    1.0,
		BatchSize:          500,
		GCIntervalMs:       60000,
	}
}

// MaxCacheSize 计算缩减后的缓存容量
// 参数 base: 正常模式下的容量
func (p Profile) MaxCacheSize(base uint32) uint32 {
	if !p.Enabled {
		return base
	}
	return uint32(float64(base) * (1 - p.CacheSizeReduction))
}

// ScanInterval 计算扫描间隔
// 参数 base: 正常模式下的扫描间隔
func (p Profile) ScanInterval(base time.Duration) time.Duration {
	if !p.Enabled || p.SpeedMultiplier <= 0 {
		return base
	}
	return time.Duration(float64(base) / p.SpeedMultiplier)
}

// GCInterval 返回清理间隔
func (p Profile) GCInterval() time.Duration {
	return time.Duration(p.GCIntervalMs) * time.Millisecond
}

// Description 返回模式的可读描述，用于启动日志
func (p Profile) Description() string {
	if !p.Enabled {
		return "Normal Mode: Full features enabled"
	}
	return fmt.Sprintf("Lightweight Mode: %d%% memory reduction, %dx speed improvement",
		uint32(p.CacheSizeReduction*100), uint32(p.SpeedMultiplier))
}
