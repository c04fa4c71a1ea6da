package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManagerRecord(t *testing.T) {
	m := NewManager()

	m.Record("groq", RequestResult{Success: true, TokensIn: 10, TokensOut: 5, TokensTotal: 15, Latency: time.Second})
	m.Record("groq", RequestResult{Success: true, Recovered: true, TokensTotal: 20, Latency: time.Second})
	m.Record("groq", RequestResult{Success: false, Latency: time.Second})

	s := m.Get("groq")
	assert.Equal(t, int64(3), s.Requests)
	assert.Equal(t, int64(1), s.Failures)
	assert.Equal(t, int64(1), s.Recoveries)
	assert.Equal(t, int64(10), s.TokensIn)
	assert.Equal(t, int64(35), s.TokensTotal)
	assert.Equal(t, 3*time.Second, s.TotalLatency)
}

func TestManagerGetUnknownProvider(t *testing.T) {
	m := NewManager()

	assert.Equal(t, ProviderStats{}, m.Get("unknown"))
}

func TestManagerSnapshot(t *testing.T) {
	m := NewManager()

	m.Record("groq", RequestResult{Success: true})
	m.Record("other", RequestResult{Success: true})

	snap := m.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, int64(1), snap["groq"].Requests)

	// 快照是副本，修改不影响内部状态
	entry := snap["groq"]
	entry.Requests = 99
	assert.Equal(t, int64(1), m.Get("groq").Requests)
}

func TestManagerConcurrentRecord(t *testing.T) {
	m := NewManager()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Record("groq", RequestResult{Success: true, TokensTotal: 1})
			}
		}()
	}
	wg.Wait()

	s := m.Get("groq")
	assert.Equal(t, int64(1000), s.Requests)
	assert.Equal(t, int64(1000), s.TokensTotal)
}
