// Package index provides exact nearest-neighbor lookup over the action
// catalog's embedding vectors.
package index

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/rendis/intentd/internal/actions"
	"github.com/rendis/intentd/internal/embedding"
	"github.com/rendis/intentd/internal/store"
	"github.com/rendis/intentd/pkg/schema"
)

// Entry is one (action name, vector) pair inside the index snapshot.
type Entry struct {
	Name   string
	Vector []float32
}

// Match is the result of a nearest-neighbor query. Distance is cosine
// distance: 0 for identical direction, growing as similarity drops.
type Match struct {
	Name     string
	Distance float64
}

// Index holds an immutable snapshot of embedded catalog entries. Rebuild
// atomically swaps the snapshot; concurrent queries observe either the old
// or the new catalog, never a partially replaced one.
//
// The catalog is small (tens of actions), so lookup is an exact linear scan.
// Entries are kept sorted by name and compared with strict less-than, so an
// exact distance tie resolves to the lexicographically first action.
type Index struct {
	provider embedding.Provider
	store    store.Store
	logger   *slog.Logger

	mu      sync.RWMutex
	entries []Entry
}

// New creates an empty Index. The store may be nil when persistence is not
// wanted (tests).
func New(provider embedding.Provider, st store.Store, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		provider: provider,
		store:    st,
		logger:   logger,
	}
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Rebuild replaces the entire index content from the given catalog: every
// descriptor is embedded fresh and the snapshot is swapped in one step.
// Stale entries for removed actions never survive a rebuild.
func (ix *Index) Rebuild(ctx context.Context, catalog []actions.CatalogEntry) error {
	texts := make([]string, len(catalog))
	for i, entry := range catalog {
		texts[i] = entry.Descriptor
	}

	vectors, err := ix.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeIndex, "rebuild: embed catalog: %v", err).WithCause(err)
	}

	entries := make([]Entry, len(catalog))
	for i, entry := range catalog {
		entries[i] = Entry{Name: entry.Name, Vector: vectors[i]}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	if ix.store != nil {
		stored := make([]store.StoredEmbedding, len(catalog))
		for i, entry := range catalog {
			stored[i] = store.StoredEmbedding{
				Name:       entry.Name,
				Descriptor: entry.Descriptor,
				Vector:     vectors[i],
			}
		}
		if err := ix.store.ReplaceEmbeddings(ctx, ix.provider.Name(), stored); err != nil {
			return schema.NewErrorf(schema.ErrCodeIndex, "rebuild: persist embeddings: %v", err).WithCause(err)
		}
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.mu.Unlock()

	ix.logger.InfoContext(ctx, "similarity index rebuilt",
		slog.Int("entries", len(entries)),
		slog.String("model", ix.provider.Name()),
	)
	return nil
}

// QueryNearest returns the single closest entry to the given vector by
// cosine distance, or ok=false when the index is empty.
func (ix *Index) QueryNearest(vec []float32) (Match, bool, error) {
	ix.mu.RLock()
	entries := ix.entries
	ix.mu.RUnlock()

	if len(entries) == 0 {
		return Match{}, false, nil
	}

	best := Match{Distance: math.Inf(1)}
	for _, entry := range entries {
		if len(entry.Vector) != len(vec) {
			return Match{}, false, schema.NewErrorf(schema.ErrCodeIndex,
				"dimension mismatch: query has %d, entry %q has %d",
				len(vec), entry.Name, len(entry.Vector))
		}
		d := cosineDistance(vec, entry.Vector)
		if d < best.Distance {
			best = Match{Name: entry.Name, Distance: d}
		}
	}
	return best, true, nil
}

// cosineDistance computes 1 minus the cosine similarity of a and b.
// A zero-magnitude vector is treated as orthogonal to everything.
func cosineDistance(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(magA)*math.Sqrt(magB))
}
