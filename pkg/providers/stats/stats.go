package stats

import (
	"sync"
	"time"
)

// RequestResult 单次请求的统计结果
type RequestResult struct {
	Success     bool
	Recovered   bool
	TokensIn    int
	TokensOut   int
	TokensTotal int
	Latency     time.Duration
}

// ProviderStats 单个后端的累计统计
type ProviderStats struct {
	Requests     int64
	Failures     int64
	Recoveries   int64
	TokensIn     int64
	TokensOut    int64
	TokensTotal  int64
	TotalLatency time.Duration
}

// Manager 按后端名称聚合请求统计
type Manager struct {
	mu         sync.RWMutex
	byProvider map[string]*ProviderStats
}

// NewManager 创建统计管理器
func NewManager() *Manager {
	return &Manager{
		byProvider: make(map[string]*ProviderStats),
	}
}

// Record 记录一次请求
func (m *Manager) Record(provider string, result RequestResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byProvider[provider]
	if !ok {
		s = &ProviderStats{}
		m.byProvider[provider] = s
	}

	s.Requests++
	if !result.Success {
		s.Failures++
	}
	if result.Recovered {
		s.Recoveries++
	}
	s.TokensIn += int64(result.TokensIn)
	s.TokensOut += int64(result.TokensOut)
	s.TokensTotal += int64(result.TokensTotal)
	s.TotalLatency += result.Latency
}

// Get 获取某个后端的统计快照
func (m *Manager) Get(provider string) ProviderStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.byProvider[provider]; ok {
		return *s
	}
	return ProviderStats{}
}

// Snapshot 获取全部后端的统计快照
func (m *Manager) Snapshot() map[string]ProviderStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]ProviderStats, len(m.byProvider))
	for name, s := range m.byProvider {
		out[name] = *s
	}
	return out
}
