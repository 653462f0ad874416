package rolestore

import (
	"context"

	"github.com/redis/go-redis/v9"
)

var redisRolePrefix string = "tracked/"

// Store backed by one redis set per member. SADD is atomic and idempotent.
type RedisRoleStore struct {
	Client *redis.Client
}

var _ RoleStore = (*RedisRoleStore)(nil)

func NewRedisRoleStore(redisURL string) (*RedisRoleStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisRoleStore{Client: rdb}, nil
}

func (s *RedisRoleStore) Record(ctx context.Context, memberID, roleID string) error {
	return s.Client.SAdd(ctx, redisRolePrefix+memberID, roleID).Err()
}

func (s *RedisRoleStore) Lookup(ctx context.Context, memberID string) ([]string, error) {
	l, err := s.Client.SMembers(ctx, redisRolePrefix+memberID).Result()
	if err == redis.Nil {
		return []string{}, nil
	} else if err != nil {
		return nil, err
	}
	if l == nil {
		l = []string{}
	}
	return l, nil
}

func (s *RedisRoleStore) Close() error {
	return s.Client.Close()
}
