// Package feed 定义行情帧的线上格式与连接指标。
package feed

import "arbitrage-cache-engine/internal/core/model"

// Frame 行情源推送的一帧
// 示例: {"id":"f-1","ts":1700000000000,"prices":[...],"opportunities":[...]}
type Frame struct {
	// ID 帧唯一标识（必填）
	ID string `json:"id"`
	// TsMs 帧时间（毫秒），缺省或非正数时使用本机时间
	TsMs int64 `json:"ts"`
	// Prices 价格观测
	Prices []model.PriceData `json:"prices"`
	// Opportunities 候选机会
	Opportunities []model.Opportunity `json:"opportunities"`
}

// ConnectionMetrics 连接质量指标
type ConnectionMetrics struct {
	// ReconnectCount 重连次数
	ReconnectCount int64 `json:"reconnect_count"`
	// ParseErrorCount 解析错误次数
	ParseErrorCount int64 `json:"parse_error_count"`
	// DroppedCount 因通道已满丢弃的帧数
	DroppedCount int64 `json:"dropped_count"`
	// TicksPerSec 每秒帧数
	TicksPerSec float64 `json:"ticks_per_sec"`
	// LastMessageAgeMs 最后消息距今时间（毫秒）
	LastMessageAgeMs int64 `json:"last_message_age_ms"`
}
