package pipelinectx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_ParametersAreSeededAtConstruction(t *testing.T) {
	c := New(WithParameters(map[string]any{"limit": 10}))
	defer c.Dispose()

	v, ok := c.Parameter("limit")
	require.True(t, ok)
	assert.Equal(t, 10, v)

	_, ok = c.Parameter("missing")
	assert.False(t, ok)
}

func TestContext_ItemsAndPropertiesAreIndependentBags(t *testing.T) {
	c := New()
	defer c.Dispose()

	c.SetItem("k", "item-value")
	c.SetProperty("k", "property-value")

	v, _ := c.Item("k")
	assert.Equal(t, "item-value", v)
	v, _ = c.Property("k")
	assert.Equal(t, "property-value", v)
}

func TestContext_EachNewCallGetsAFreshRunID(t *testing.T) {
	a := New()
	b := New()
	defer a.Dispose()
	defer b.Dispose()
	assert.NotEqual(t, a.RunID, b.RunID)
}

type recordingDisposable struct {
	name    string
	failErr error
	order   *[]string
}

func (d *recordingDisposable) Dispose() error {
	*d.order = append(*d.order, d.name)
	return d.failErr
}

func TestContext_DisposeRunsInReverseOrderAndCollectsErrors(t *testing.T) {
	c := New()
	var order []string
	boom := errors.New("cleanup failed")

	c.AddDisposable(&recordingDisposable{name: "first", order: &order})
	c.AddDisposable(&recordingDisposable{name: "second", order: &order, failErr: boom})
	c.AddDisposable(&recordingDisposable{name: "third", order: &order})

	errs := c.Dispose()
	assert.Equal(t, []string{"third", "second", "first"}, order)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
}

func TestContext_PooledInstanceStartsClean(t *testing.T) {
	c1 := New()
	c1.SetItem("leftover", true)
	c1.Dispose()

	c2 := New()
	defer c2.Dispose()
	_, ok := c2.Item("leftover")
	assert.False(t, ok, "pooled context must not leak state from a prior run")
}

func TestContext_ExternalParametersSurviveDispose(t *testing.T) {
	external := newBag()
	external.Set("limit", 10)

	c := New(WithExternalParameters(external))
	v, ok := c.Parameter("limit")
	require.True(t, ok)
	assert.Equal(t, 10, v)

	c.Dispose()

	v, ok = external.Get("limit")
	require.True(t, ok, "an externally-supplied bag must not be cleared on Dispose")
	assert.Equal(t, 10, v)
}

func TestContext_ExternalItemsAndPropertiesAreNotReturnedToPool(t *testing.T) {
	externalItems := newBag()
	externalProps := newBag()

	c := New(WithExternalItems(externalItems), WithExternalProperties(externalProps))
	c.SetItem("k", "item-value")
	c.SetProperty("k", "property-value")
	c.Dispose()

	v, ok := externalItems.Get("k")
	require.True(t, ok)
	assert.Equal(t, "item-value", v)
	v, ok = externalProps.Get("k")
	require.True(t, ok)
	assert.Equal(t, "property-value", v)

	// A freshly pooled Context must never come back out holding the
	// previous run's external bags.
	next := New()
	defer next.Dispose()
	_, ok = next.Item("k")
	assert.False(t, ok)
	_, ok = next.Property("k")
	assert.False(t, ok)
}
