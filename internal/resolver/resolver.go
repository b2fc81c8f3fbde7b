// Package resolver turns a possibly corrupted name into its best known
// correction by walking a fixed fallback chain: cache, MusicBrainz search,
// AI model, identity.
//
// The chain is an explicit state machine. Each stage reports a stageResult
// and next decides whether to finish, write the result back to the cache,
// or advance to the following stage. Stage failures never escape Resolve;
// they degrade to a miss and are logged.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/smkaiser/songfix/internal/correction"
	"github.com/smkaiser/songfix/internal/provider"
)

// Store is the correction cache.
type Store interface {
	Get(ctx context.Context, name string, typ correction.Type) (*correction.Entry, error)
	Put(ctx context.Context, e correction.Entry) error
}

// Searcher looks a name up in the MusicBrainz catalogue.
type Searcher interface {
	Lookup(ctx context.Context, name string, typ correction.Type) (*correction.Match, error)
}

// AICorrector asks a language model for a correction.
type AICorrector interface {
	Correct(ctx context.Context, name string, typ correction.Type) (*correction.Match, error)
}

// Resolver runs the fallback chain. It is safe for concurrent use.
type Resolver struct {
	store    Store
	searcher Searcher
	ai       AICorrector
	logger   *slog.Logger
}

// New creates a Resolver. searcher and ai may be nil, in which case their
// stage always misses.
func New(store Store, searcher Searcher, ai AICorrector, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:    store,
		searcher: searcher,
		ai:       ai,
		logger:   logger.With(slog.String("component", "resolver")),
	}
}

type state int

const (
	stateCache state = iota
	stateSearch
	stateAI
	stateIdentity
)

func (s state) String() string {
	switch s {
	case stateCache:
		return "cache"
	case stateSearch:
		return "search"
	case stateAI:
		return "ai"
	case stateIdentity:
		return "identity"
	default:
		return "unknown"
	}
}

type outcome int

const (
	outcomeMiss outcome = iota
	outcomeMatch
	outcomeFailed
)

// stageResult is what one stage reports back to the state machine.
type stageResult struct {
	outcome outcome
	match   correction.Match
	err     error
}

// transition is the decision next makes after a stage.
type transition struct {
	to        state
	done      bool
	writeBack bool
}

// next is the transition function of the chain. Only a match from the
// search or AI stage is written back; identity always finishes.
func next(s state, r stageResult) transition {
	if s == stateIdentity {
		return transition{to: s, done: true}
	}
	if r.outcome == outcomeMatch {
		return transition{to: s, done: true, writeBack: s == stateSearch || s == stateAI}
	}
	return transition{to: s + 1}
}

// Resolve returns the best correction for name. It never fails: when no
// stage produces a match the input comes back unchanged with source "none"
// and confidence 0.
//
// The work is detached from ctx cancellation, so a caller that gives up
// does not suppress calls already under way or their write-back.
func (r *Resolver) Resolve(ctx context.Context, name string, typ correction.Type) correction.Result {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	s := stateCache
	for {
		res := r.run(ctx, s, name, typ)
		if res.outcome == outcomeFailed {
			r.logFailure(s, name, typ, res.err)
		}

		t := next(s, res)
		if !t.done {
			s = t.to
			continue
		}
		if t.writeBack {
			r.writeBack(ctx, name, typ, res.match)
		}

		result := correction.Result{
			Input:      name,
			Corrected:  res.match.Corrected,
			Source:     res.match.Source,
			Confidence: res.match.Confidence,
		}
		resolutionsTotal.WithLabelValues(string(result.Source)).Inc()
		resolutionDuration.WithLabelValues(s.String()).Observe(time.Since(start).Seconds())
		r.logger.Info("resolved",
			slog.String("name", name),
			slog.String("type", string(typ)),
			slog.String("corrected", result.Corrected),
			slog.String("source", string(result.Source)),
			slog.Float64("confidence", result.Confidence))
		return result
	}
}

func (r *Resolver) run(ctx context.Context, s state, name string, typ correction.Type) stageResult {
	switch s {
	case stateCache:
		return r.lookupCache(ctx, name, typ)
	case stateSearch:
		if r.searcher == nil {
			return stageResult{outcome: outcomeMiss}
		}
		return fromMatch(r.searcher.Lookup(ctx, name, typ))
	case stateAI:
		if r.ai == nil {
			return stageResult{outcome: outcomeMiss}
		}
		return fromMatch(r.ai.Correct(ctx, name, typ))
	default:
		return stageResult{
			outcome: outcomeMatch,
			match:   correction.Match{Corrected: name, Source: correction.SourceNone, Confidence: 0},
		}
	}
}

// lookupCache treats a read failure as a miss so a broken store degrades to
// uncached resolution.
func (r *Resolver) lookupCache(ctx context.Context, name string, typ correction.Type) stageResult {
	e, err := r.store.Get(ctx, name, typ)
	if err != nil {
		return stageResult{outcome: outcomeFailed, err: err}
	}
	if e == nil {
		return stageResult{outcome: outcomeMiss}
	}
	return stageResult{
		outcome: outcomeMatch,
		match:   correction.Match{Corrected: e.Corrected, Source: e.Source, Confidence: e.Confidence},
	}
}

func fromMatch(m *correction.Match, err error) stageResult {
	switch {
	case err != nil:
		return stageResult{outcome: outcomeFailed, err: err}
	case m == nil:
		return stageResult{outcome: outcomeMiss}
	default:
		return stageResult{outcome: outcomeMatch, match: *m}
	}
}

func (r *Resolver) logFailure(s state, name string, typ correction.Type, err error) {
	attrs := []any{
		slog.String("stage", s.String()),
		slog.String("name", name),
		slog.String("type", string(typ)),
		slog.String("error", err.Error()),
	}
	var unavailable *provider.ErrProviderUnavailable
	if errors.As(err, &unavailable) && unavailable.Attempts > 0 {
		attrs = append(attrs, slog.Int("attempts", unavailable.Attempts))
	}
	r.logger.Warn("stage failed, advancing", attrs...)
}

// writeBack stores m. A failed write is logged and otherwise ignored; the
// caller still gets the computed result.
func (r *Resolver) writeBack(ctx context.Context, name string, typ correction.Type, m correction.Match) {
	err := r.store.Put(ctx, correction.Entry{
		InputName:  name,
		Type:       typ,
		Corrected:  m.Corrected,
		Source:     m.Source,
		Confidence: m.Confidence,
	})
	if err != nil {
		cacheWriteFailures.Inc()
		r.logger.Error("cache write-back failed",
			slog.String("name", name),
			slog.String("type", string(typ)),
			slog.String("error", err.Error()))
	}
}
