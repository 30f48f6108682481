// Package feed 行情帧解析器测试
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"arbitrage-cache-engine/internal/core/model"
)

// **Feature: arbitrage-cache-engine, Property 8: Frame Parse Consistency**

// TestParser_RoundTrip 解析后的节拍应保留帧内的价格与机会
func TestParser_RoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	parser := NewParser()

	properties.Property("解析保留帧字段", prop.ForAll(
		func(id string, ts int64, px float64, bps int32) bool {
			if id == "" {
				id = "f"
			}
			f := Frame{
				ID:   id,
				TsMs: ts,
				Prices: []model.PriceData{{
					TokenA: "WETH", TokenB: "USDC", Price: fmt.Sprintf("%.6f", px), Source: "uniswap", Timestamp: ts,
				}},
				Opportunities: []model.Opportunity{{
					Path: []string{"WETH", "USDC", "WETH"}, Dexes: []string{"uniswap", "sushi"},
					InputAmount: "1", OutputAmount: "1.01", Profit: "0.01", ProfitBps: bps, Timestamp: ts,
				}},
			}
			data, err := json.Marshal(f)
			if err != nil {
				return false
			}

			tick, err := parser.Parse(data)
			if err != nil {
				return false
			}
			return tick.ID == id &&
				tick.NowMs == ts &&
				len(tick.Prices) == 1 && tick.Prices[0] == f.Prices[0] &&
				len(tick.Opportunities) == 1 &&
				tick.Opportunities[0].Fingerprint() == "WETH-USDC-WETH|uniswap-sushi" &&
				tick.Opportunities[0].ProfitBps == bps &&
				tick.ArrivedAtUnixNs > 0
		},
		gen.AlphaString(),
		gen.Int64Range(1, 1_800_000_000_000),
		gen.Float64Range(0.0001, 100000),
		gen.Int32Range(-10000, 10000),
	))

	properties.TestingRun(t)
}

func TestParser_MissingTimestampUsesLocalClock(t *testing.T) {
	tick, err := NewParser().Parse([]byte(`{"id":"f-1","prices":[]}`))
	if err != nil {
		t.Fatalf("Parse err: %v", err)
	}
	if tick.NowMs <= 0 {
		t.Fatalf("NowMs=%d, 应回退到本机时间", tick.NowMs)
	}
	if tick.NowMs != tick.ArrivedAtUnixNs/1_000_000 {
		t.Fatalf("NowMs=%d 与到达时间不一致", tick.NowMs)
	}
}

func TestParser_MissingID(t *testing.T) {
	_, err := NewParser().Parse([]byte(`{"ts":1000}`))
	if !errors.Is(err, ErrMissingID) {
		t.Fatalf("err=%v, want ErrMissingID", err)
	}
}

func TestParser_InvalidJSON(t *testing.T) {
	if _, err := NewParser().Parse([]byte(`{"id":`)); err == nil {
		t.Fatal("非法 JSON 应返回错误")
	}
}
