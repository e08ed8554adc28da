package config

import (
	"sync"
	"sync/atomic"
	"time"

	"gridpointer/fault"
)

// Store 持有当前生效的配置快照。读取方通过原子指针拿到完整快照，
// 既不会看到半更新的配置，也不会阻塞写入方
type Store struct {
	cur     atomic.Pointer[Config]
	version atomic.Uint64

	mu sync.Mutex // 仅串行化写入方
}

// NewStore 以初始配置创建 Store；初始配置必须合法
func NewStore(initial *Config) (*Store, error) {
	if err := initial.Validate(); err != nil {
		return nil, fault.ConfigInvalid(initial.Source, err)
	}
	s := &Store{}
	s.cur.Store(initial.Clone())
	s.version.Store(1)
	return s, nil
}

// Current 返回当前快照（只读）
func (s *Store) Current() *Config { return s.cur.Load() }

// Version 每次成功替换后递增
func (s *Store) Version() uint64 { return s.version.Load() }

// Swap 校验并原子替换快照；非法配置被拒绝，旧快照继续生效
func (s *Store) Swap(next *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.swapLocked(next)
}

// Update 基于当前快照派生新配置并替换（admin 接口的局部修改）
func (s *Store) Update(mutate func(*Config)) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.Current().Clone()
	mutate(next)
	if err := s.swapLocked(next); err != nil {
		return nil, err
	}
	return s.Current(), nil
}

func (s *Store) swapLocked(next *Config) error {
	if next == nil {
		return fault.ConfigInvalid("", errNilConfig)
	}
	if err := next.Validate(); err != nil {
		return fault.ConfigInvalid(next.Source, err)
	}
	s.cur.Store(next.Clone())
	s.version.Add(1)
	return nil
}

// DeadZone 当前摇杆死区（供输入生产者每次读取）
func (s *Store) DeadZone() float64 { return s.Current().Input.DeadZone }

// AnalogRepeat 摇杆保持偏移时的重复投递间隔
func (s *Store) AnalogRepeat() time.Duration { return s.Current().AnalogRepeatInterval() }
