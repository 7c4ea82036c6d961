package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/stratplan/companion/internal/model"
)

// TutorialService persists per-user "tutorial seen" flags. Writes are
// last-write-wins.
type TutorialService struct {
	redis *redis.Client
}

func NewTutorialService(redisClient *redis.Client) *TutorialService {
	return &TutorialService{redis: redisClient}
}

// Get reports whether the user has seen the tutorial. Unknown keys are
// unseen.
func (s *TutorialService) Get(ctx context.Context, userID, key string) (*model.TutorialFlagResponse, error) {
	val, err := s.redis.Get(ctx, tutorialKey(userID, key)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read tutorial flag: %w", err)
	}

	return &model.TutorialFlagResponse{Key: key, Seen: val == "1"}, nil
}

// Set records the flag.
func (s *TutorialService) Set(ctx context.Context, userID, key string, seen bool) (*model.TutorialFlagResponse, error) {
	val := "0"
	if seen {
		val = "1"
	}
	if err := s.redis.Set(ctx, tutorialKey(userID, key), val, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to write tutorial flag: %w", err)
	}

	return &model.TutorialFlagResponse{Key: key, Seen: seen}, nil
}

func tutorialKey(userID, key string) string {
	return fmt.Sprintf("tutorial:%s:%s", userID, key)
}
