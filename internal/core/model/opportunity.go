// Package model 定义缓存引擎使用的核心数据结构。
// 包含套利机会、价格观测与行情帧。
package model

import "strings"

const (
	// pathSep 路径段分隔符
	pathSep = "-"
	// routeSep 路径与 DEX 序列之间的分隔符（与 pathSep 不同，避免拼接歧义）
	routeSep = "|"
)

// Opportunity 套利机会
// 金额与利润保持字符串形式，不绑定固定精度数值类型。
type Opportunity struct {
	// Path 代币路径，如 [WETH, USDC, WETH]
	Path []string `json:"path"`
	// Dexes 每一跳使用的 DEX
	Dexes []string `json:"dexes"`
	// InputAmount 输入数量（十进制字符串）
	InputAmount string `json:"input_amount"`
	// OutputAmount 输出数量（十进制字符串）
	OutputAmount string `json:"output_amount"`
	// Profit 利润（十进制字符串）
	Profit string `json:"profit"`
	// ProfitBps 利润（基点）
	ProfitBps int32 `json:"profit_bps"`
	// Timestamp 发现时间（毫秒）
	Timestamp int64 `json:"timestamp"`
}

// Fingerprint 计算机会指纹
// 格式: join(path, "-") + "|" + join(dexes, "-")
func (o *Opportunity) Fingerprint() string {
	var b strings.Builder
	b.Grow(128)
	b.WriteString(strings.Join(o.Path, pathSep))
	b.WriteString(routeSep)
	b.WriteString(strings.Join(o.Dexes, pathSep))
	return b.String()
}

// Clone 创建 Opportunity 的深拷贝
func (o *Opportunity) Clone() Opportunity {
	c := *o
	if o.Path != nil {
		c.Path = append([]string(nil), o.Path...)
	}
	if o.Dexes != nil {
		c.Dexes = append([]string(nil), o.Dexes...)
	}
	return c
}
