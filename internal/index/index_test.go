package index

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/intentd/internal/actions"
	"github.com/rendis/intentd/internal/store"
	"github.com/rendis/intentd/pkg/schema"
)

// stubProvider returns fixed vectors from a lookup table.
type stubProvider struct {
	vecs map[string][]float32
	dims int
	err  error
}

func (p *stubProvider) Embed(_ context.Context, text string) ([]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	v, ok := p.vecs[text]
	if !ok {
		return nil, fmt.Errorf("no stub vector for %q", text)
	}
	return v, nil
}

func (p *stubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *stubProvider) Dimensions() int { return p.dims }
func (p *stubProvider) Name() string    { return "stub" }

// recordingStore captures ReplaceEmbeddings calls.
type recordingStore struct {
	store.Store
	replaced []store.StoredEmbedding
	model    string
}

func (r *recordingStore) ReplaceEmbeddings(_ context.Context, model string, entries []store.StoredEmbedding) error {
	r.model = model
	r.replaced = entries
	return nil
}

func testCatalog() []actions.CatalogEntry {
	return []actions.CatalogEntry{
		{Name: "open_browser", Descriptor: "Open the web browser"},
		{Name: "cpu_usage", Descriptor: "Report the current CPU usage"},
	}
}

func testProvider() *stubProvider {
	return &stubProvider{
		dims: 3,
		vecs: map[string][]float32{
			"Open the web browser":         {1, 0, 0},
			"Report the current CPU usage": {0, 1, 0},
		},
	}
}

func TestIndex_RebuildAndQuery(t *testing.T) {
	ix := New(testProvider(), nil, nil)
	require.NoError(t, ix.Rebuild(context.Background(), testCatalog()))
	assert.Equal(t, 2, ix.Len())

	// A vector identical to a catalog entry has distance ~0.
	m, ok, err := ix.QueryNearest([]float32{1, 0, 0})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "open_browser", m.Name)
	assert.InDelta(t, 0, m.Distance, 1e-9)

	// A nearby but not identical vector still resolves to the closest entry.
	m, ok, err = ix.QueryNearest([]float32{0.1, 0.9, 0})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cpu_usage", m.Name)
	assert.Greater(t, m.Distance, 0.0)
}

func TestIndex_QueryEmpty(t *testing.T) {
	ix := New(testProvider(), nil, nil)
	_, ok, err := ix.QueryNearest([]float32{1, 0, 0})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndex_DimensionMismatch(t *testing.T) {
	ix := New(testProvider(), nil, nil)
	require.NoError(t, ix.Rebuild(context.Background(), testCatalog()))

	_, _, err := ix.QueryNearest([]float32{1, 0})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeIndex, schema.CodeOf(err))
}

func TestIndex_TieBreaksLexicographically(t *testing.T) {
	p := &stubProvider{
		dims: 2,
		vecs: map[string][]float32{
			"same direction a": {2, 0},
			"same direction b": {4, 0},
		},
	}
	catalog := []actions.CatalogEntry{
		{Name: "zeta", Descriptor: "same direction a"},
		{Name: "alpha", Descriptor: "same direction b"},
	}

	ix := New(p, nil, nil)
	require.NoError(t, ix.Rebuild(context.Background(), catalog))

	// Both entries point the same way, so cosine distance ties exactly.
	m, ok, err := ix.QueryNearest([]float32{1, 0})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alpha", m.Name)
}

func TestIndex_RebuildPersists(t *testing.T) {
	st := &recordingStore{}
	ix := New(testProvider(), st, nil)
	require.NoError(t, ix.Rebuild(context.Background(), testCatalog()))

	assert.Equal(t, "stub", st.model)
	require.Len(t, st.replaced, 2)
	assert.Equal(t, "open_browser", st.replaced[0].Name)
	assert.Equal(t, "Open the web browser", st.replaced[0].Descriptor)
	assert.Equal(t, []float32{1, 0, 0}, st.replaced[0].Vector)
}

func TestIndex_RebuildEmbedFailure(t *testing.T) {
	p := &stubProvider{dims: 3, err: fmt.Errorf("backend down")}
	ix := New(p, nil, nil)

	err := ix.Rebuild(context.Background(), testCatalog())
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeIndex, schema.CodeOf(err))
	assert.Equal(t, 0, ix.Len())
}

func TestIndex_RebuildReplacesStaleEntries(t *testing.T) {
	p := testProvider()
	ix := New(p, nil, nil)
	require.NoError(t, ix.Rebuild(context.Background(), testCatalog()))

	// Rebuild with a shrunken catalog drops the removed entry.
	require.NoError(t, ix.Rebuild(context.Background(), testCatalog()[:1]))
	assert.Equal(t, 1, ix.Len())

	m, ok, err := ix.QueryNearest([]float32{0, 1, 0})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "open_browser", m.Name)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, cosineDistance([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 1, cosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2, cosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	// Zero magnitude is treated as maximally dissimilar, not NaN.
	assert.InDelta(t, 1, cosineDistance([]float32{0, 0}, []float32{1, 0}), 1e-9)
}
