// Package structure orchestrates the loader pipeline: check the chunk store,
// and on a miss fetch the raw structure, derive its bond graph, serialize,
// and write the artifact through the store.
package structure

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/sjando/jolecule/internal/analytics"
	"github.com/sjando/jolecule/internal/pdb"
	"github.com/sjando/jolecule/internal/structure/bond"
	"github.com/sjando/jolecule/internal/structure/claim"
	"github.com/sjando/jolecule/internal/structure/jsloader"
	pkgerrors "github.com/sjando/jolecule/pkg/errors"
	"github.com/sjando/jolecule/pkg/logger"
	"github.com/sjando/jolecule/pkg/metrics"
	"github.com/sjando/jolecule/pkg/middleware"
	"github.com/sjando/jolecule/pkg/tracing"
)

// ChunkStore persists and reassembles artifact chunks. Write reports the
// number of chunks written.
type ChunkStore interface {
	Read(ctx context.Context, structureID string) (string, bool, error)
	Write(ctx context.Context, structureID, text string) (int, error)
}

// Fetcher retrieves raw structure files from the remote source.
type Fetcher interface {
	Fetch(ctx context.Context, structureID string) ([]byte, error)
	URL(structureID string) string
}

// Diagnostic placeholders served in place of an artifact when the fetch
// fails. They are javascript comments so a script include stays valid, and
// they are never persisted: the next request retries the fetch from scratch.
const (
	remarkFromStore  = "// REMARK From database\n"
	diagFetchError   = "// Downloading error from the RCSB website"
	diagFetchTimeout = "// Timed out downloading from the RCSB website"
	diagTooLarge     = "// Sorry, but there is a 1MB restriction in fetching files from sites such as the RCSB"
)

const pollInterval = 200 * time.Millisecond

var validID = regexp.MustCompile(`^[A-Za-z0-9]{1,32}$`)

// Options configures the service's optional collaborators.
type Options struct {
	// Claims enables duplicate-computation collapsing. Nil means concurrent
	// misses for one id compute independently.
	Claims *claim.Coordinator
	// ClaimWait bounds how long a request that lost the claim polls the
	// store for the winner's artifact before computing on its own.
	ClaimWait time.Duration
	Metrics   *metrics.Metrics
	Events    *analytics.Collector
}

// Service is the fetch-compute-cache orchestrator for loader artifacts.
type Service struct {
	store     ChunkStore
	fetcher   Fetcher
	claims    *claim.Coordinator
	claimWait time.Duration
	metrics   *metrics.Metrics
	events    *analytics.Collector
	logger    *slog.Logger
}

func NewService(store ChunkStore, fetcher Fetcher, opts Options) *Service {
	return &Service{
		store:     store,
		fetcher:   fetcher,
		claims:    opts.Claims,
		claimWait: opts.ClaimWait,
		metrics:   opts.Metrics,
		events:    opts.Events,
		logger:    slog.Default().With("component", "structure-service"),
	}
}

// Loader returns the loader artifact text for a structure id, deriving and
// caching it on first request. Fetch failures produce a diagnostic
// placeholder with a nil error; store integrity and parse failures are
// returned as errors.
func (s *Service) Loader(ctx context.Context, structureID string) (string, error) {
	start := time.Now()
	log := logger.FromContext(ctx)

	if !validID.MatchString(structureID) {
		return "", pkgerrors.Newf(pkgerrors.ErrInvalidInput, http.StatusBadRequest,
			"invalid structure id %q", structureID)
	}

	text, ok, err := s.store.Read(ctx, structureID)
	if err != nil {
		s.countOutcome("error")
		return "", err
	}
	if ok {
		s.countOutcome("hit")
		if s.metrics != nil {
			s.metrics.StoreHitsTotal.Inc()
			s.metrics.LoaderLatency.WithLabelValues("hit").Observe(time.Since(start).Seconds())
		}
		s.track(analytics.StructureEvent{
			Type:          analytics.EventCacheHit,
			StructureID:   structureID,
			ArtifactBytes: len(text),
			Timestamp:     time.Now().UTC(),
			RequestID:     middleware.GetRequestID(ctx),
		})
		log.Debug("artifact served from store",
			"structure_id", structureID,
			"bytes", len(text),
		)
		return remarkFromStore + text, nil
	}
	if s.metrics != nil {
		s.metrics.StoreMissesTotal.Inc()
	}

	var result string
	if s.claims != nil {
		result, _, err = s.claims.Do(structureID, func() (string, error) {
			return s.claimAndCompute(ctx, structureID)
		})
	} else {
		result, err = s.compute(ctx, structureID)
	}
	if err != nil {
		s.countOutcome("error")
		return "", err
	}
	if s.metrics != nil {
		s.metrics.LoaderLatency.WithLabelValues("miss").Observe(time.Since(start).Seconds())
	}
	return result, nil
}

// claimAndCompute tries to win the cross-process claim for the id. Losers
// poll the store briefly for the winner's artifact and fall back to
// computing independently, so a stalled winner never blocks them for long.
func (s *Service) claimAndCompute(ctx context.Context, structureID string) (string, error) {
	release, acquired := s.claims.TryAcquire(ctx, structureID)
	if acquired {
		defer release()
		return s.compute(ctx, structureID)
	}
	if text, ok := s.awaitStore(ctx, structureID); ok {
		s.countOutcome("hit")
		if s.metrics != nil {
			s.metrics.StoreHitsTotal.Inc()
		}
		s.track(analytics.StructureEvent{
			Type:          analytics.EventCacheHit,
			StructureID:   structureID,
			ArtifactBytes: len(text),
			Timestamp:     time.Now().UTC(),
			RequestID:     middleware.GetRequestID(ctx),
		})
		return remarkFromStore + text, nil
	}
	return s.compute(ctx, structureID)
}

func (s *Service) awaitStore(ctx context.Context, structureID string) (string, bool) {
	deadline := time.Now().Add(s.claimWait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", false
		case <-ticker.C:
			text, ok, err := s.store.Read(ctx, structureID)
			if err == nil && ok {
				return text, true
			}
		}
	}
	return "", false
}

// compute runs the miss path: fetch, parse, infer bonds, serialize, store.
func (s *Service) compute(ctx context.Context, structureID string) (string, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	ctx, span := tracing.StartSpan(ctx, "structure.derive", middleware.GetRequestID(ctx))
	span.SetAttr("structure_id", structureID)
	defer func() {
		span.End()
		span.Log()
	}()

	fetchCtx, fetchSpan := tracing.StartChildSpan(ctx, "fetch")
	raw, err := s.fetcher.Fetch(fetchCtx, structureID)
	fetchSpan.End()
	if err != nil {
		s.countOutcome("fetch_error")
		s.track(analytics.StructureEvent{
			Type:        analytics.EventFetchError,
			StructureID: structureID,
			Timestamp:   time.Now().UTC(),
			RequestID:   middleware.GetRequestID(ctx),
		})
		switch {
		case errors.Is(err, pkgerrors.ErrContentTooLarge):
			log.Warn("structure exceeds fetch limit", "structure_id", structureID, "error", err)
			return diagTooLarge, nil
		case errors.Is(err, pkgerrors.ErrFetchTimeout):
			log.Warn("structure fetch timed out", "structure_id", structureID, "error", err)
			return diagFetchTimeout, nil
		default:
			log.Warn("structure fetch failed", "structure_id", structureID, "error", err)
			return diagFetchError, nil
		}
	}

	_, deriveSpan := tracing.StartChildSpan(ctx, "derive")
	lines := pdb.FilterAtomLines(string(raw))
	mol, err := pdb.Parse(lines)
	if err != nil {
		deriveSpan.End()
		return "", err
	}
	res := bond.Infer(mol)
	deriveSpan.SetAttr("atoms", len(mol.Atoms()))
	deriveSpan.SetAttr("bonds", len(res.Bonds))
	deriveSpan.SetAttr("comparisons", res.Comparisons)
	deriveSpan.End()
	if s.metrics != nil {
		s.metrics.BondsDerivedTotal.Add(float64(len(res.Bonds)))
		s.metrics.BondComparisons.Observe(float64(res.Comparisons))
	}

	text := "// REMARK from " + s.fetcher.URL(structureID) + "\n" +
		jsloader.Render(lines, res.Bonds, res.MaxLength)

	writeCtx, writeSpan := tracing.StartChildSpan(ctx, "store.write")
	chunks, err := s.store.Write(writeCtx, structureID, text)
	writeSpan.End()
	if err != nil {
		// Serving the freshly computed artifact beats failing the request;
		// the next miss recomputes and retries the write.
		log.Error("storing artifact failed", "structure_id", structureID, "error", err)
	}

	s.countOutcome("miss")
	s.track(analytics.StructureEvent{
		Type:          analytics.EventComputed,
		StructureID:   structureID,
		AtomCount:     len(mol.Atoms()),
		BondCount:     len(res.Bonds),
		ArtifactBytes: len(text),
		ChunkCount:    chunks,
		LatencyMs:     time.Since(start).Milliseconds(),
		Timestamp:     time.Now().UTC(),
		RequestID:     middleware.GetRequestID(ctx),
	})
	log.Info("artifact derived",
		"structure_id", structureID,
		"atoms", len(mol.Atoms()),
		"bonds", len(res.Bonds),
		"chunks", chunks,
		"bytes", len(text),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func (s *Service) track(event analytics.StructureEvent) {
	if s.events != nil {
		s.events.Track(event)
	}
}

func (s *Service) countOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.LoaderRequestsTotal.WithLabelValues(outcome).Inc()
	}
}
