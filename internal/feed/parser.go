package feed

import (
	"errors"
	"fmt"

	"github.com/sugawarayuuta/sonnet"

	"arbitrage-cache-engine/internal/core/model"
	"arbitrage-cache-engine/internal/util/timeutil"
)

// ErrMissingID 帧缺少 id 字段
var ErrMissingID = errors.New("行情帧缺少 id")

// Parser 行情帧解析器（无状态，并发安全）
type Parser struct{}

// NewParser 创建行情帧解析器
func NewParser() *Parser {
	return &Parser{}
}

// Parse 解析一帧原始消息为 Tick
// 参数 data: 原始消息字节
// 返回: 解析后的节拍；JSON 非法或缺少 id 时返回错误
func (p *Parser) Parse(data []byte) (*model.Tick, error) {
	arrivedAt := timeutil.NowNano()

	var f Frame
	if err := sonnet.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析行情帧失败: %w", err)
	}
	if f.ID == "" {
		return nil, ErrMissingID
	}

	nowMs := f.TsMs
	if nowMs <= 0 {
		nowMs = arrivedAt / 1_000_000
	}

	return &model.Tick{
		ID:              f.ID,
		NowMs:           nowMs,
		Prices:          f.Prices,
		Opportunities:   f.Opportunities,
		ArrivedAtUnixNs: arrivedAt,
	}, nil
}
