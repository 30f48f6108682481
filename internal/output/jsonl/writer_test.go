// Package jsonl 输出模块测试
package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"arbitrage-cache-engine/internal/core/model"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("行不是合法 JSON: %v", err)
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return out
}

// **Feature: arbitrage-cache-engine, Property 9: Opportunity Output Completeness**

func TestOpportunityRecord_OutputCompleteness_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("opportunities JSON 必含必需字段", prop.ForAll(
		func(bps int32, ts int64, dex string) bool {
			o := model.Opportunity{
				Path:         []string{"WETH", "USDC", "WETH"},
				Dexes:        []string{dex, dex},
				InputAmount:  "1",
				OutputAmount: "1.01",
				Profit:       "0.01",
				ProfitBps:    bps,
				Timestamp:    ts,
			}
			rec := OpportunityRecord{RunID: "r", TickID: "t", NowMs: ts, Fingerprint: o.Fingerprint(), Opportunity: o}

			b, err := json.Marshal(rec)
			if err != nil {
				return false
			}
			var m map[string]any
			if err := json.Unmarshal(b, &m); err != nil {
				return false
			}
			for _, k := range []string{"run_id", "tick_id", "now_ms", "fingerprint", "opportunity"} {
				if _, ok := m[k]; !ok {
					return false
				}
			}
			inner, ok := m["opportunity"].(map[string]any)
			if !ok {
				return false
			}
			for _, k := range []string{"path", "dexes", "input_amount", "output_amount", "profit", "profit_bps", "timestamp"} {
				if _, ok := inner[k]; !ok {
					return false
				}
			}
			return true
		},
		gen.Int32Range(-10000, 10000),
		gen.Int64Range(0, 1_800_000_000_000),
		gen.OneConstOf("uniswap", "sushi", "curve"),
	))

	properties.TestingRun(t)
}

func TestWriter_WriteAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.jsonl")

	w, err := NewWriter(path, 100)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := w.Write(map[string]any{"i": i}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("重复 Close: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 10 {
		t.Fatalf("lines=%d, want 10", len(lines))
	}
	if got := w.Counters().Written; got != 10 {
		t.Fatalf("Written=%d, want 10", got)
	}
	if err := w.Write(1); !errors.Is(err, ErrClosed) {
		t.Fatalf("关闭后写入 err=%v, want ErrClosed", err)
	}
	if w.TryWrite(1) {
		t.Fatal("关闭后 TryWrite 应返回 false")
	}
}

func TestWriter_FlushMakesRecordsVisible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flush.jsonl")
	w, err := NewWriter(path, 10)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	_ = w.Write(map[string]int{"a": 1})
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if lines := readLines(t, path); len(lines) != 1 {
		t.Fatalf("Flush 后 lines=%d, want 1", len(lines))
	}
}

type failingRecord struct{}

func (failingRecord) MarshalJSON() ([]byte, error) {
	return nil, errors.New("encode failed")
}

func TestWriter_EncodeErrorCounted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	w, err := NewWriter(path, 10)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	_ = w.Write(failingRecord{})
	_ = w.Write(map[string]int{"ok": 1})
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c := w.Counters()
	if c.EncodeErrors != 1 || c.Written != 1 {
		t.Fatalf("Counters=%+v", c)
	}
}

func TestWriter_ConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.jsonl")
	w, err := NewWriter(path, 16)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = w.Write(map[string]int{"i": i})
			}
		}()
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if lines := readLines(t, path); len(lines) != 200 {
		t.Fatalf("lines=%d, want 200", len(lines))
	}
}

func TestSink_RoutesByKind(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSink("run-1", SinkOptions{
		Dir:                  dir,
		BufferSize:           100,
		OpportunitiesEnabled: true,
		MediansEnabled:       false,
		MetricsEnabled:       true,
	})
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}

	s.WriteOpportunities("f-1", 1000, []model.Opportunity{
		{Path: []string{"A", "B"}, Dexes: []string{"d1"}, Profit: "1", ProfitBps: 80},
		{Path: []string{"A", "C"}, Dexes: []string{"d1"}, Profit: "2", ProfitBps: 90},
	})
	s.WriteMedians("f-1", []model.MedianQuote{{TokenA: "A", TokenB: "B"}})
	if err := s.WriteMetrics(map[string]any{"run_id": s.RunID(), "ticks": 1}); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	counters := s.Counters()
	if _, ok := counters[MediansFile]; ok {
		t.Fatal("未启用的文件不应出现在计数中")
	}
	if counters[OpportunitiesFile].Written != 2 {
		t.Fatalf("counters=%+v", counters)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	opps := readLines(t, filepath.Join(dir, OpportunitiesFile))
	if len(opps) != 2 || opps[0]["fingerprint"] != "A-B|d1" || opps[0]["run_id"] != "run-1" {
		t.Fatalf("opportunities=%v", opps)
	}
	if _, err := os.Stat(filepath.Join(dir, MediansFile)); !os.IsNotExist(err) {
		t.Fatalf("未启用的 medians 文件不应创建, err=%v", err)
	}
	if metrics := readLines(t, filepath.Join(dir, MetricsFile)); len(metrics) != 1 {
		t.Fatalf("metrics lines=%d, want 1", len(metrics))
	}
}
