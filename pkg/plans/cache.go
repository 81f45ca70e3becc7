package plans

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/quillback/tally/pkg/observability"
)

const (
	planKeyFormat = "plan:%d"
	planListKey   = "plans:all"
)

// CachedService wraps a Service with a redis read-through cache.
// Cache failures degrade to direct reads, never to request failures.
type CachedService struct {
	inner   Service
	client  *redis.Client
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewCachedService creates a cached plan service. metrics may be nil.
func NewCachedService(inner Service, client *redis.Client, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) *CachedService {
	return &CachedService{
		inner:   inner,
		client:  client,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

// GetPlan retrieves a plan, serving from cache when possible
func (s *CachedService) GetPlan(ctx context.Context, id int64) (*Plan, error) {
	key := fmt.Sprintf(planKeyFormat, id)

	data, err := s.client.Get(ctx, key).Result()
	if err == nil {
		var plan Plan
		if err := json.Unmarshal([]byte(data), &plan); err == nil {
			s.recordHit()
			return &plan, nil
		}
		// Corrupt entry, drop it and fall through
		s.client.Del(ctx, key)
	} else if err != redis.Nil {
		s.logger.WithError(err).Warn("plan cache read failed")
	}
	s.recordMiss()

	plan, err := s.inner.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(plan); err == nil {
		if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
			s.logger.WithError(err).Warn("plan cache write failed")
		}
	}

	return plan, nil
}

// ListPlans lists plans, serving from cache when possible
func (s *CachedService) ListPlans(ctx context.Context) ([]*Plan, error) {
	data, err := s.client.Get(ctx, planListKey).Result()
	if err == nil {
		var plans []*Plan
		if err := json.Unmarshal([]byte(data), &plans); err == nil {
			s.recordHit()
			return plans, nil
		}
		s.client.Del(ctx, planListKey)
	} else if err != redis.Nil {
		s.logger.WithError(err).Warn("plan list cache read failed")
	}
	s.recordMiss()

	plans, err := s.inner.ListPlans(ctx)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(plans); err == nil {
		if err := s.client.Set(ctx, planListKey, payload, s.ttl).Err(); err != nil {
			s.logger.WithError(err).Warn("plan list cache write failed")
		}
	}

	return plans, nil
}

// CreatePlan creates a plan and invalidates the list cache
func (s *CachedService) CreatePlan(ctx context.Context, req *CreatePlanRequest) (*Plan, error) {
	plan, err := s.inner.CreatePlan(ctx, req)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, planListKey)
	return plan, nil
}

// UpdatePlan updates a plan and invalidates its cache entries
func (s *CachedService) UpdatePlan(ctx context.Context, id int64, req *UpdatePlanRequest) (*Plan, error) {
	plan, err := s.inner.UpdatePlan(ctx, id, req)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, fmt.Sprintf(planKeyFormat, id), planListKey)
	return plan, nil
}

func (s *CachedService) invalidate(ctx context.Context, keys ...string) {
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.WithError(err).Warn("plan cache invalidation failed")
	}
}

func (s *CachedService) recordHit() {
	if s.metrics != nil {
		s.metrics.CacheHitsTotal.WithLabelValues("plans").Inc()
	}
}

func (s *CachedService) recordMiss() {
	if s.metrics != nil {
		s.metrics.CacheMissesTotal.WithLabelValues("plans").Inc()
	}
}
