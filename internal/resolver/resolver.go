// Package resolver maps free-text prompts to registered action names via
// embedding similarity.
package resolver

import (
	"context"
	"log/slog"

	"github.com/rendis/intentd/internal/embedding"
	"github.com/rendis/intentd/internal/index"
	"github.com/rendis/intentd/internal/session"
)

// DefaultThreshold is the maximum cosine distance at which a nearest
// neighbor is accepted as a confident match. Calibrated against the typical
// score range of sentence-embedding models, not derived at runtime.
const DefaultThreshold = 0.45

// Match is the outcome of resolving one prompt. When Matched is false the
// prompt had no action within the acceptance threshold (Action is empty);
// Distance still carries the nearest-neighbor score when one existed.
type Match struct {
	Action   string
	Distance float64
	Matched  bool
}

// Resolver orchestrates the embedding provider and similarity index to turn
// a prompt into a candidate action name.
type Resolver struct {
	provider  embedding.Provider
	index     *index.Index
	sessions  *session.Store
	threshold float64
	logger    *slog.Logger
}

// New creates a Resolver. A non-positive threshold falls back to
// DefaultThreshold.
func New(provider embedding.Provider, ix *index.Index, sessions *session.Store, threshold float64, logger *slog.Logger) *Resolver {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		provider:  provider,
		index:     ix,
		sessions:  sessions,
		threshold: threshold,
		logger:    logger,
	}
}

// Threshold returns the configured acceptance threshold.
func (r *Resolver) Threshold() float64 { return r.threshold }

// Resolve records the prompt into the session history, embeds it and looks
// up the nearest registered action. Re-submitting a prompt is idempotent
// with respect to history. Errors are infrastructure faults (embedding or
// index failure); an unmatched prompt is not an error.
func (r *Resolver) Resolve(ctx context.Context, prompt, sessionID string) (Match, error) {
	r.sessions.Record(sessionID, prompt)

	vec, err := r.provider.Embed(ctx, prompt)
	if err != nil {
		return Match{}, err
	}

	nearest, found, err := r.index.QueryNearest(vec)
	if err != nil {
		return Match{}, err
	}
	if !found {
		r.logger.WarnContext(ctx, "no matching action found: index is empty")
		return Match{}, nil
	}

	r.logger.InfoContext(ctx, "best match",
		slog.String("candidate", nearest.Name),
		slog.Float64("distance", nearest.Distance),
	)

	if nearest.Distance > r.threshold {
		r.logger.WarnContext(ctx, "no action meets the similarity threshold",
			slog.Float64("distance", nearest.Distance),
			slog.Float64("threshold", r.threshold),
		)
		return Match{Distance: nearest.Distance}, nil
	}

	return Match{Action: nearest.Name, Distance: nearest.Distance, Matched: true}, nil
}
