package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"pickme-game-service/internal/domain"
)

// Loader fetches game content from the backing store (the mapping-store
// backend or a Postgres mirror).
type Loader interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	GetQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
	GetWorldcup(ctx context.Context, worldcupID string) (domain.Worldcup, error)
	GetCandidates(ctx context.Context, worldcupID string) ([]domain.Candidate, error)
}

// Catalog caches game content in Redis as JSON blobs and falls back to a
// loader on cache miss. Stats embedded in cached questions/candidates may lag
// the store by the TTL; result submission always goes straight to the store.
// Keys:
//
//	quiz:{id}:meta          quiz descriptor
//	quiz:{id}:questions     ordered question list
//	worldcup:{id}:meta      worldcup descriptor
//	worldcup:{id}:candidates  full candidate list
type Catalog struct {
	client *redis.Client
	loader Loader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalog(client *redis.Client, loader Loader, ttl time.Duration) *Catalog {
	return &Catalog{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *Catalog) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := c.cached(ctx, "quiz:"+quizID+":meta", &quiz, func(ctx context.Context) (any, error) {
		return c.loader.GetQuiz(ctx, quizID)
	})
	return quiz, err
}

func (c *Catalog) GetQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	var questions []domain.Question
	err := c.cached(ctx, "quiz:"+quizID+":questions", &questions, func(ctx context.Context) (any, error) {
		return c.loader.GetQuestions(ctx, quizID)
	})
	return questions, err
}

func (c *Catalog) GetWorldcup(ctx context.Context, worldcupID string) (domain.Worldcup, error) {
	var worldcup domain.Worldcup
	err := c.cached(ctx, "worldcup:"+worldcupID+":meta", &worldcup, func(ctx context.Context) (any, error) {
		return c.loader.GetWorldcup(ctx, worldcupID)
	})
	return worldcup, err
}

func (c *Catalog) GetCandidates(ctx context.Context, worldcupID string) ([]domain.Candidate, error) {
	var candidates []domain.Candidate
	err := c.cached(ctx, "worldcup:"+worldcupID+":candidates", &candidates, func(ctx context.Context) (any, error) {
		return c.loader.GetCandidates(ctx, worldcupID)
	})
	return candidates, err
}

// cached reads the key from Redis, or loads and fills it under singleflight
// so concurrent misses hit the backing store once.
func (c *Catalog) cached(ctx context.Context, key string, dest any, load func(ctx context.Context) (any, error)) error {
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		return json.Unmarshal(raw, dest)
	}

	raw, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled the key.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			return raw, nil
		}
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		_ = c.client.Set(ctx, key, encoded, c.ttlWithJitter()).Err()
		return encoded, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dest)
}

func (c *Catalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
