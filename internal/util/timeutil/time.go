// Package timeutil 提供单调递增的时间戳。
// 聚合器假设 now_ms 在调用序列内单调不减，宿主统一从这里取时间。
package timeutil

import (
	"time"
)

var (
	// baseTime 基准时间点（包含单调时钟读数）
	baseTime = time.Now()
	// baseUnixNs 基准时间点对应的 Unix 纳秒时间戳
	baseUnixNs = baseTime.UnixNano()
)

// NowNano 获取当前时间的纳秒时间戳
// NowNano = baseUnixNs + time.Since(baseTime)，系统时间跳变时仍保持单调。
func NowNano() int64 {
	return baseUnixNs + time.Since(baseTime).Nanoseconds()
}

// NowMs 获取当前时间的毫秒时间戳
func NowMs() int64 {
	return NowNano() / 1_000_000
}

// NanoToMs 将纳秒转换为毫秒（浮点，保留精度）
func NanoToMs(ns int64) float64 {
	return float64(ns) / 1_000_000.0
}

// SinceNano 计算从指定纳秒时间戳到现在的时间差（纳秒）
func SinceNano(startNs int64) int64 {
	return NowNano() - startNs
}
