package model

// Tick 一次处理节拍的输入
// 由行情源按帧推送，每帧携带一批价格观测与候选机会。
type Tick struct {
	// ID 帧唯一标识，用于帧级去重
	ID string
	// NowMs 节拍时间（毫秒），同一输入序列内单调不减
	NowMs int64
	// Prices 价格观测
	Prices []PriceData
	// Opportunities 候选机会
	Opportunities []Opportunity
	// ArrivedAtUnixNs 本机收到帧的时间（纳秒）
	ArrivedAtUnixNs int64
}

// MedianQuote 某交易对的中位价
type MedianQuote struct {
	// TokenA 基础代币
	TokenA string `json:"token_a"`
	// TokenB 计价代币
	TokenB string `json:"token_b"`
	// Median 中位数对应的观测
	Median PriceData `json:"median"`
	// Sources 参与计算的观测数
	Sources int `json:"sources"`
	// NowMs 计算时的节拍时间（毫秒）
	NowMs int64 `json:"now_ms"`
}
