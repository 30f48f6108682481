// Package backoff 实现行情源断线重连的指数退避。
package backoff

import (
	"math/rand"
	"time"
)

// maxShift 指数上限，避免 1<<attempt 溢出
const maxShift = 30

// Policy 退避参数
type Policy struct {
	// Base 首次重连等待时间
	Base time.Duration
	// Max 等待时间上限（抖动前）
	Max time.Duration
	// Jitter 抖动比例（0-1），0.2 表示 ±20%
	Jitter float64
}

// DefaultPolicy 默认退避参数：1s 起步，30s 封顶，±20% 抖动
var DefaultPolicy = Policy{Base: time.Second, Max: 30 * time.Second, Jitter: 0.2}

// Backoff 指数退避计算器（非并发安全，由单个重连循环持有）
type Backoff struct {
	policy  Policy
	attempt int
}

// New 按参数创建退避计算器
// Base 非正时使用默认值；Max 小于 Base 时以 Base 为上限。
func New(p Policy) *Backoff {
	if p.Base <= 0 {
		p.Base = DefaultPolicy.Base
	}
	if p.Max < p.Base {
		p.Max = p.Base
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return &Backoff{policy: p}
}

// Next 返回下一次重连前的等待时间
// 公式: min(Base × 2^attempt, Max) × (1 ± Jitter)
func (b *Backoff) Next() time.Duration {
	shift := b.attempt
	if shift > maxShift {
		shift = maxShift
	}
	delay := b.policy.Base << shift
	if delay <= 0 || delay > b.policy.Max {
		delay = b.policy.Max
	}

	if b.policy.Jitter > 0 {
		factor := 1.0 + (rand.Float64()*2-1)*b.policy.Jitter
		delay = time.Duration(float64(delay) * factor)
	}

	b.attempt++
	return delay
}

// Reset 连接成功后调用，重置重试次数
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt 返回当前重试次数
func (b *Backoff) Attempt() int {
	return b.attempt
}
