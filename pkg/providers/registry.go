package providers

import (
	"fmt"
	"sync"
)

// Registry 后端注册表。流水线通过名称选择翻译后端。
type Registry struct {
	mu        sync.RWMutex
	providers map[string]TranslationProvider
}

// NewRegistry 创建新的注册表
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]TranslationProvider),
	}
}

// Register 注册后端
func (r *Registry) Register(name string, provider TranslationProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	r.providers[name] = provider
	return nil
}

// Get 获取后端
func (r *Registry) Get(name string) (TranslationProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", name)
	}

	return provider, nil
}

// List 列出所有后端名称
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}

	return names
}

// DefaultRegistry 默认注册表
var DefaultRegistry = NewRegistry()

// Register 注册到默认注册表
func Register(name string, provider TranslationProvider) error {
	return DefaultRegistry.Register(name, provider)
}

// Get 从默认注册表获取
func Get(name string) (TranslationProvider, error) {
	return DefaultRegistry.Get(name)
}
