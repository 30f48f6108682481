// Package mode 提供轻量模式开关及其派生参数。
// 轻量模式以缓存完整性换取更低的内存占用，由宿主进程显式创建并传递给各引擎。
package mode

import "sync/atomic"

// Switch 轻量模式开关（并发安全）
// 构造期参数（如去重缓存容量）应在构造时读取一次快照；
// 每次调用期参数（如淘汰力度）应每次重新读取。
type Switch struct {
	// enabled 当前是否处于轻量模式
	enabled atomic.Bool
}

// New 创建模式开关
// 参数 enabled: 初始是否启用轻量模式
func New(enabled bool) *Switch {
	s := &Switch{}
	s.enabled.Store(enabled)
	return s
}

// Set 无条件覆盖当前模式
func (s *Switch) Set(enabled bool) {
	s.enabled.Store(enabled)
}

// Enabled 返回当前是否处于轻量模式
// nil 开关视为未启用。
func (s *Switch) Enabled() bool {
	if s == nil {
		return false
	}
	return s.enabled.Load()
}

// Profile 返回当前模式对应的参数档位
func (s *Switch) Profile() Profile {
	return NewProfile(s.Enabled())
}
