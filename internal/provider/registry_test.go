package provider

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bricksync/internal/config"
	"bricksync/internal/domain"
	"bricksync/internal/provider/props"
)

type fakeProvider struct {
	name     string
	mu       sync.Mutex
	connects int
	closes   int
	failNext bool
}

func (f *fakeProvider) Name() string              { return f.name }
func (f *fakeProvider) Kind() domain.ProviderKind { return domain.ProviderDuckDB }

func (f *fakeProvider) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.failNext {
		f.failNext = false
		return errors.New("boom")
	}
	return nil
}

func (f *fakeProvider) Close() error {
	f.closes++
	return nil
}

func fakeFactories(made map[string]*fakeProvider) map[domain.ProviderKind]Factory {
	return map[domain.ProviderKind]Factory{
		domain.ProviderDuckDB: func(name string, p props.Props, _ *slog.Logger) (domain.Provider, error) {
			if err := p.Require(name, "path"); err != nil {
				return nil, err
			}
			f := &fakeProvider{name: name, failNext: p.Get("fail", "") == "true"}
			made[name] = f
			return f, nil
		},
	}
}

func TestRegistry_BuildAndConnect(t *testing.T) {
	made := map[string]*fakeProvider{}
	r := NewRegistry(fakeFactories(made), nil)
	require.NoError(t, r.Build([]config.ProviderConfig{
		{Name: "eager", Kind: domain.ProviderDuckDB, Properties: map[string]string{"path": "a"}},
		{Name: "lazy", Kind: domain.ProviderDuckDB, Lazy: true, Properties: map[string]string{"path": "b"}},
	}))
	assert.Equal(t, []string{"eager", "lazy"}, r.Names())

	p, ok := r.Lookup("lazy")
	require.True(t, ok)
	assert.Equal(t, "lazy", p.Name())
	assert.Zero(t, made["lazy"].connects, "lookup never connects")

	ctx := context.Background()
	require.NoError(t, r.ConnectAll(ctx))
	assert.Equal(t, 1, made["eager"].connects)
	assert.Zero(t, made["lazy"].connects)

	for range 3 {
		_, err := r.Get(ctx, "lazy")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, made["lazy"].connects, "connects once")

	require.NoError(t, r.Close())
	assert.Equal(t, 1, made["eager"].closes)
	assert.Equal(t, 1, made["lazy"].closes)
}

func TestRegistry_ConnectFailureRetries(t *testing.T) {
	made := map[string]*fakeProvider{}
	r := NewRegistry(fakeFactories(made), nil)
	require.NoError(t, r.Build([]config.ProviderConfig{
		{Name: "flaky", Kind: domain.ProviderDuckDB, Properties: map[string]string{"path": "a", "fail": "true"}},
	}))

	ctx := context.Background()
	err := r.ConnectAll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect provider flaky")

	_, err = r.Get(ctx, "flaky")
	require.NoError(t, err)
	assert.Equal(t, 2, made["flaky"].connects)

	require.NoError(t, r.Close())
	assert.Equal(t, 1, made["flaky"].closes)
}

func TestRegistry_BuildErrors(t *testing.T) {
	made := map[string]*fakeProvider{}
	r := NewRegistry(fakeFactories(made), nil)
	err := r.Build([]config.ProviderConfig{
		{Name: "a", Kind: domain.ProviderDuckDB, Properties: map[string]string{"path": "x"}},
		{Name: "a", Kind: domain.ProviderDuckDB, Properties: map[string]string{"path": "y"}},
		{Name: "b", Kind: domain.ProviderGlue},
		{Name: "c", Kind: domain.ProviderDuckDB},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"a" is registered twice`)
	assert.Contains(t, err.Error(), `unknown kind "glue"`)
	assert.Contains(t, err.Error(), "missing required properties: path")

	var ce *domain.ConfigError
	assert.True(t, errors.As(err, &ce))

	_, err = r.Get(context.Background(), "nope")
	assert.True(t, errors.As(err, &ce))
}

func TestDefaultFactories(t *testing.T) {
	tests := []struct {
		kind  domain.ProviderKind
		props map[string]string
	}{
		{domain.ProviderDatabricks, map[string]string{"host": "adb-1.net", "token": "t"}},
		{domain.ProviderSnowflake, map[string]string{"account": "acct", "user": "u", "password": "p"}},
		{domain.ProviderGlue, map[string]string{"region_name": "us-east-1"}},
		{domain.ProviderIcebergREST, map[string]string{"uri": "http://localhost:8181"}},
		{domain.ProviderDuckDB, map[string]string{}},
	}
	factories := DefaultFactories()
	require.Len(t, factories, len(tests))
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			p, err := factories[tt.kind]("p", tt.props, slog.Default())
			require.NoError(t, err)
			assert.Equal(t, tt.kind, p.Kind())
			assert.Equal(t, "p", p.Name())
		})
	}
}
