package configuration

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/mapping/internal/testdomain"
)

func TestHolder_LazyInitialization(t *testing.T) {
	var builds atomic.Int32
	h := NewHolder(func() (*MappingConfiguration, error) {
		builds.Add(1)
		return BuildFromDomain(testdomain.Domain())
	})

	var wg sync.WaitGroup
	results := make([]*MappingConfiguration, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg, err := h.Current()
			assert.NoError(t, err)
			results[i] = cfg
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	require.NotNil(t, results[0])
	for _, cfg := range results {
		assert.Same(t, results[0], cfg)
	}
}

func TestHolder_FailedBuild(t *testing.T) {
	errBroken := errors.New("broken domain")
	fail := false
	h := NewHolder(func() (*MappingConfiguration, error) {
		if fail {
			return nil, errBroken
		}
		return BuildFromDomain(testdomain.Domain())
	})

	first, err := h.Current()
	require.NoError(t, err)

	fail = true
	_, err = h.Rebuild()
	assert.ErrorIs(t, err, errBroken)

	current, err := h.Current()
	require.NoError(t, err)
	assert.Same(t, first, current, "a failed rebuild keeps the previous configuration")

	fail = false
	rebuilt, err := h.Rebuild()
	require.NoError(t, err)
	assert.NotSame(t, first, rebuilt)
	assert.NotEqual(t, first.ID(), rebuilt.ID())
}

func TestHolder_FirstBuildFails(t *testing.T) {
	errBroken := errors.New("broken domain")
	attempts := 0
	h := NewHolder(func() (*MappingConfiguration, error) {
		attempts++
		if attempts == 1 {
			return nil, errBroken
		}
		return BuildFromDomain(testdomain.Domain())
	})

	_, err := h.Current()
	assert.ErrorIs(t, err, errBroken)

	cfg, err := h.Current()
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, 2, attempts)
}

func TestHolder_SetCurrentAndReset(t *testing.T) {
	h := NewHolder(nil)

	_, err := h.Current()
	assert.ErrorIs(t, err, ErrNoBuilder)

	cfg, err := BuildFromDomain(testdomain.Domain())
	require.NoError(t, err)
	h.SetCurrent(cfg)

	current, err := h.Current()
	require.NoError(t, err)
	assert.Same(t, cfg, current)

	h.Reset()
	_, err = h.Current()
	assert.ErrorIs(t, err, ErrNoBuilder)

	h.SetCurrent(cfg)
	h.SetCurrent(nil)
	_, err = h.Current()
	assert.ErrorIs(t, err, ErrNoBuilder)
}

func TestGlobalHolder(t *testing.T) {
	t.Cleanup(func() {
		SetBuilder(nil)
		Reset()
	})

	SetBuilder(func() (*MappingConfiguration, error) {
		return BuildFromDomain(testdomain.MixinDomain())
	})

	cfg, err := Current()
	require.NoError(t, err)
	assert.True(t, cfg.ContainsTypeDefinition(testdomain.TargetClassForPersistentMixin))

	again, err := Current()
	require.NoError(t, err)
	assert.Same(t, cfg, again)

	rebuilt, err := Rebuild()
	require.NoError(t, err)
	assert.NotSame(t, cfg, rebuilt)

	SetCurrent(cfg)
	current, err := Current()
	require.NoError(t, err)
	assert.Same(t, cfg, current)
}
