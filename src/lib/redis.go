package lib

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

func GetRedisClient() *redis.Client {
	if redisClient != nil {
		return redisClient
	}
	redisHost := os.Getenv("REDIS_HOST")
	opt, err := redis.ParseURL(redisHost)
	if err != nil {
		log.Printf("[redis] Error parsing connection string: %s\n", err.Error())
		return nil
	}
	rdb := redis.NewClient(opt)
	redisClient = rdb
	return rdb
}

// AcquireClaim takes an exclusive claim on a payout for the duration of an
// outbound transfer call. Returns false when another worker holds the claim.
func AcquireClaim(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) (bool, error) {
	ok, err := rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		log.Printf("[redis] Error acquiring claim %s: %s\n", key, err.Error())
		return false, err
	}
	return ok, nil
}

func ReleaseClaim(ctx context.Context, rdb *redis.Client, key string) {
	if err := rdb.Del(ctx, key).Err(); err != nil {
		log.Printf("[redis] Error releasing claim %s: %s\n", key, err.Error())
	}
}

func ClaimHeld(ctx context.Context, rdb *redis.Client, key string) bool {
	n, err := rdb.Exists(ctx, key).Result()
	if err != nil {
		log.Printf("[redis] Error checking claim %s: %s\n", key, err.Error())
		return false
	}
	return n > 0
}

// VerificationCodeStore keeps short-lived phone verification codes in redis
// with TTL semantics instead of a process-wide map.
type VerificationCodeStore struct {
	inner *redis.Client
	ttl   time.Duration
}

func NewVerificationCodeStore(rdb *redis.Client, ttl time.Duration) *VerificationCodeStore {
	return &VerificationCodeStore{inner: rdb, ttl: ttl}
}

func (s *VerificationCodeStore) key(phone string) string {
	return fmt.Sprintf("verify:%s", phone)
}

func (s *VerificationCodeStore) Put(ctx context.Context, phone string, code string) error {
	return s.inner.Set(ctx, s.key(phone), code, s.ttl).Err()
}

// Check consumes the code on a match, so a verified code cannot be replayed.
func (s *VerificationCodeStore) Check(ctx context.Context, phone string, code string) (bool, error) {
	val, err := s.inner.Get(ctx, s.key(phone)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if val != code {
		return false, nil
	}
	s.inner.Del(ctx, s.key(phone))
	return true, nil
}
