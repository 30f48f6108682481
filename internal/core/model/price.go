package model

// PriceData 单条价格观测
type PriceData struct {
	// TokenA 基础代币
	TokenA string `json:"token_a"`
	// TokenB 计价代币
	TokenB string `json:"token_b"`
	// Price 价格（十进制字符串）
	Price string `json:"price"`
	// Source 价格来源，如 DEX 名称
	Source string `json:"source"`
	// Timestamp 观测时间（毫秒）
	Timestamp int64 `json:"timestamp"`
}

// PriceKey 价格缓存的复合键
type PriceKey struct {
	TokenA string
	TokenB string
	Source string
}

// PairKey 交易对键（不区分来源），用于跨来源取中位数
type PairKey struct {
	TokenA string
	TokenB string
}

// Key 返回价格观测的缓存键
func (p *PriceData) Key() PriceKey {
	return PriceKey{TokenA: p.TokenA, TokenB: p.TokenB, Source: p.Source}
}

// Pair 返回价格观测所属交易对
func (p *PriceData) Pair() PairKey {
	return PairKey{TokenA: p.TokenA, TokenB: p.TokenB}
}

// String 返回 "A-B-source" 形式，便于日志输出
func (k PriceKey) String() string {
	return k.TokenA + "-" + k.TokenB + "-" + k.Source
}
