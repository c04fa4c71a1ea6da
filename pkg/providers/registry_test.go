package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name string
}

func (f *fakeProvider) Translate(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error) {
	return &ProviderResponse{Text: req.Fragment}, nil
}

func (f *fakeProvider) GetName() string {
	return f.name
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	p := &fakeProvider{name: "fake"}

	require.NoError(t, r.Register("fake", p))

	got, err := r.Get("fake")
	require.NoError(t, err)
	assert.Equal(t, "fake", got.GetName())
}

func TestRegistryDuplicateRegister(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("fake", &fakeProvider{name: "fake"}))
	assert.Error(t, r.Register("fake", &fakeProvider{name: "fake"}))
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("missing")
	assert.Error(t, err)
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("a", &fakeProvider{name: "a"}))
	require.NoError(t, r.Register("b", &fakeProvider{name: "b"}))

	assert.ElementsMatch(t, []string{"a", "b"}, r.List())
}
