package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalog/vitalog-api/internal/database"
	"github.com/vitalog/vitalog-api/internal/models"
)

// DefaultTTL is how long a generated recommendation set stays fresh
const DefaultTTL = 2 * time.Hour

// Cache stores the last generated recommendation set per user per kind. The
// storage unit is two nullable columns on the user row (payload + expiry),
// not a separate store. A put always overwrites; last writer wins.
type Cache struct {
	users  database.UserRepositoryInterface
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewCache creates a recommendation cache with the given TTL
func NewCache(users database.UserRepositoryInterface, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		users:  users,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// GetMeal reads the meal slot from an already-loaded user record. Absent,
// expired, or undecodable entries are all misses, never errors.
func (c *Cache) GetMeal(user *models.User) (*models.MealRecommendationSet, bool) {
	payload, ok := c.freshPayload(user.MealRecommendationsCache, user.MealCacheExpiry)
	if !ok {
		return nil, false
	}

	var set models.MealRecommendationSet
	if err := json.Unmarshal([]byte(payload), &set); err != nil {
		if c.logger != nil {
			c.logger.Warn("discarding undecodable meal cache entry",
				zap.String("user_id", user.ID.String()),
				zap.Error(err),
			)
		}
		return nil, false
	}
	return &set, true
}

// GetWorkout reads the workout slot from an already-loaded user record.
func (c *Cache) GetWorkout(user *models.User) (*models.WorkoutRecommendationSet, bool) {
	payload, ok := c.freshPayload(user.WorkoutRecommendationsCache, user.WorkoutCacheExpiry)
	if !ok {
		return nil, false
	}

	var set models.WorkoutRecommendationSet
	if err := json.Unmarshal([]byte(payload), &set); err != nil {
		if c.logger != nil {
			c.logger.Warn("discarding undecodable workout cache entry",
				zap.String("user_id", user.ID.String()),
				zap.Error(err),
			)
		}
		return nil, false
	}
	return &set, true
}

// freshPayload checks the read invariant: valid iff now < expiry
func (c *Cache) freshPayload(payload *string, expiry *time.Time) (string, bool) {
	if payload == nil || expiry == nil {
		return "", false
	}
	if !c.now().Before(*expiry) {
		return "", false
	}
	return *payload, true
}

// PutMeal writes the meal slot unconditionally with a fresh expiry
func (c *Cache) PutMeal(ctx context.Context, userID uuid.UUID, set *models.MealRecommendationSet) error {
	return c.put(ctx, userID, models.RecommendationKindMeal, set)
}

// PutWorkout writes the workout slot unconditionally with a fresh expiry
func (c *Cache) PutWorkout(ctx context.Context, userID uuid.UUID, set *models.WorkoutRecommendationSet) error {
	return c.put(ctx, userID, models.RecommendationKindWorkout, set)
}

func (c *Cache) put(ctx context.Context, userID uuid.UUID, kind models.RecommendationKind, set any) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to serialize %s recommendations: %w", kind, err)
	}

	payload := string(data)
	expiry := c.now().Add(c.ttl)
	if err := c.users.UpdateRecommendationCache(ctx, userID, kind, &payload, &expiry); err != nil {
		return fmt.Errorf("failed to cache %s recommendations: %w", kind, err)
	}
	return nil
}
