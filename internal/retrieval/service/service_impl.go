package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/edgebank/assist/internal/cache"
	"github.com/edgebank/assist/internal/config"
	obsmetrics "github.com/edgebank/assist/internal/observability/metrics"
	"github.com/edgebank/assist/internal/retrieval/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultTopK = 5

type Service struct {
	client    domain.Client
	kv        cache.KV
	assistant *config.AssistantConfigHolder
	metrics   *obsmetrics.Metrics
	log       *zap.Logger
	group     singleflight.Group
}

func New(client domain.Client, kv cache.KV, assistant *config.AssistantConfigHolder, metrics *obsmetrics.Metrics, log *zap.Logger) *Service {
	return &Service{
		client:    client,
		kv:        kv,
		assistant: assistant,
		metrics:   metrics,
		log:       log.Named("retrieval.service"),
	}
}

type cachedResult struct {
	Passages  []domain.Passage `json:"passages"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// Retrieve returns passages for the query, serving repeats from the cache.
// Concurrent misses for the same key share one upstream fetch.
func (s *Service) Retrieve(ctx context.Context, req domain.Request) (domain.Result, error) {
	if !req.Namespace.Valid() {
		req.Namespace = domain.NamespaceDefault
	}
	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}

	key := domain.Fingerprint(req.Namespace, req.Query)

	if payload, ok, err := s.kv.Get(ctx, key); err == nil && ok {
		var cached cachedResult
		if err := json.Unmarshal(payload, &cached); err == nil {
			s.metrics.RecordRetrievalCache(ctx, "hit")
			return s.assemble(cached.Passages, req, true), nil
		}
	}
	s.metrics.RecordRetrievalCache(ctx, "miss")

	value, err, _ := s.group.Do(key, func() (interface{}, error) {
		// Re-check under single-flight: a concurrent caller may have just
		// populated the key.
		if payload, ok, err := s.kv.Get(ctx, key); err == nil && ok {
			var cached cachedResult
			if err := json.Unmarshal(payload, &cached); err == nil {
				return cached.Passages, nil
			}
		}

		cfg := s.assistant.Get()
		fetchCtx, cancel := context.WithTimeout(ctx, cfg.RetrievalTimeout)
		defer cancel()

		passages, err := s.client.Fetch(fetchCtx, req.Namespace, domain.Normalize(req.Query), req.TopK)
		if err != nil {
			return nil, err
		}

		payload, err := json.Marshal(cachedResult{Passages: passages, FetchedAt: time.Now().UTC()})
		if err == nil {
			if err := s.kv.Set(ctx, key, payload, cfg.CacheTTL); err != nil {
				s.log.Warn("retrieval cache write failed", zap.Error(err))
			}
		}
		return passages, nil
	})
	if err != nil {
		return domain.Result{}, err
	}

	return s.assemble(value.([]domain.Passage), req, false), nil
}

// assemble applies the financial-document filter after the cache so one
// cached entry serves filtered and unfiltered callers alike.
func (s *Service) assemble(passages []domain.Passage, req domain.Request, hit bool) domain.Result {
	kept := make([]domain.Passage, 0, len(passages))
	for _, passage := range passages {
		if req.FilterFinancial && domain.IsFinancialDocument(passage.SourceID) {
			continue
		}
		kept = append(kept, passage)
	}

	seen := make(map[string]struct{}, len(kept))
	sources := make([]string, 0, len(kept))
	for _, passage := range kept {
		if passage.SourceID == "" {
			continue
		}
		if _, dup := seen[passage.SourceID]; dup {
			continue
		}
		seen[passage.SourceID] = struct{}{}
		sources = append(sources, passage.SourceID)
	}

	return domain.Result{Passages: kept, Sources: sources, CacheHit: hit}
}
