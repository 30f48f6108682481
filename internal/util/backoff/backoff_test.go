// Package backoff 退避算法测试
package backoff

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// **Feature: arbitrage-cache-engine, Property 9: Reconnect Backoff Bounds**

func TestBackoff_Bounds_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("无抖动时单调不减且不超过上限", prop.ForAll(
		func(baseMs int, maxMs int, attempts int) bool {
			p := Policy{Base: time.Duration(baseMs) * time.Millisecond, Max: time.Duration(maxMs) * time.Millisecond}
			b := New(p)
			prev := time.Duration(0)
			for i := 0; i < attempts; i++ {
				d := b.Next()
				if d < prev || d > p.Max {
					return false
				}
				prev = d
			}
			return true
		},
		gen.IntRange(100, 2000),
		gen.IntRange(2000, 60000),
		gen.IntRange(1, 80),
	))

	properties.Property("抖动后仍在 ±jitter 范围内", prop.ForAll(
		func(jitterPercent int) bool {
			jitter := float64(jitterPercent) / 100
			b := New(Policy{Base: time.Second, Max: 30 * time.Second, Jitter: jitter})
			for i := 0; i < 20; i++ {
				b.Reset()
				d := float64(b.Next())
				if d < float64(time.Second)*(1-jitter) || d > float64(time.Second)*(1+jitter) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}

func TestBackoff_Sequence(t *testing.T) {
	b := New(Policy{Base: time.Second, Max: 30 * time.Second})
	want := []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Fatalf("attempt %d: got %v, want %v", i, got, w)
		}
	}
	if b.Attempt() != len(want) {
		t.Fatalf("Attempt=%d, want %d", b.Attempt(), len(want))
	}
}

func TestBackoff_ManyAttemptsStayCapped(t *testing.T) {
	b := New(Policy{Base: time.Second, Max: 30 * time.Second})
	for i := 0; i < 200; i++ {
		if got := b.Next(); got != 30*time.Second && i > 5 {
			t.Fatalf("attempt %d: got %v, want 30s", i, got)
		}
	}
}

func TestBackoff_ResetAndDefaults(t *testing.T) {
	b := New(Policy{})
	if b.policy.Base != DefaultPolicy.Base || b.policy.Max != DefaultPolicy.Base {
		t.Fatalf("零值参数应回落到默认 Base，policy=%+v", b.policy)
	}

	b = New(DefaultPolicy)
	b.Next()
	b.Next()
	b.Reset()
	if b.Attempt() != 0 {
		t.Fatalf("Reset 后 Attempt=%d", b.Attempt())
	}
}
