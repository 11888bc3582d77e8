package emulator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResource struct{ name string }

func (s *stubResource) Open(context.Context) error { return nil }
func (s *stubResource) Close() error               { return nil }

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry()
	julabo := &stubResource{name: "julabo"}

	require.NoError(t, r.Add("julabo", julabo))

	got, ok := r.Get("julabo")
	assert.True(t, ok)
	assert.Same(t, julabo, got)
	assert.Equal(t, []string{"julabo"}, r.Keys())

	r.Remove("julabo")
	_, ok = r.Get("julabo")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryRejectsDuplicateKey(t *testing.T) {
	r := NewRegistry()
	first := &stubResource{name: "first"}
	second := &stubResource{name: "second"}

	require.NoError(t, r.Add("tpg300", first))
	err := r.Add("tpg300", second)

	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	got, _ := r.Get("tpg300")
	assert.Same(t, first, got, "original entry must not be overwritten")
}

func TestRegistryRemoveAbsentKeyIsNoop(t *testing.T) {
	r := NewRegistry()
	assert.NotPanics(t, func() { r.Remove("missing") })
}

func TestRegistryKeysSortedAndRunIDs(t *testing.T) {
	r := NewRegistry()
	for _, key := range []string{"kepco", "eurotherm", "julabo"} {
		require.NoError(t, r.Add(key, &stubResource{name: key}))
	}
	assert.Equal(t, []string{"eurotherm", "julabo", "kepco"}, r.Keys())

	assert.NotEmpty(t, r.RunID())
	assert.NotEqual(t, r.RunID(), NewRegistry().RunID())
	assert.Same(t, DefaultRegistry(), DefaultRegistry())
}

func TestRegistryTypedLookups(t *testing.T) {
	r := NewRegistry()
	null := NewNullLauncher(Settings{Device: "simple", Registry: r})
	require.NoError(t, null.Open(context.Background()))
	t.Cleanup(func() { _ = null.Close() })

	l, ok := r.Launcher("simple")
	assert.True(t, ok)
	assert.Same(t, null, l)

	_, ok = r.Multi("simple")
	assert.False(t, ok)
	_, ok = r.Launcher("missing")
	assert.False(t, ok)
}
