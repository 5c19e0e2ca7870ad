package cart

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/book-store/internal/model"
)

// RedisStore keeps each cart in a hash: field = book id, value = quantity.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a store writing keys "<prefix>:<cart id>".
func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "bookstore:cart"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(cartID string) string { return s.prefix + ":" + cartID }

func field(bookID uint64) string { return strconv.FormatUint(bookID, 10) }

func (s *RedisStore) Lines(ctx context.Context, cartID string) ([]model.CartLine, error) {
	m, err := s.rdb.HGetAll(ctx, s.key(cartID)).Result()
	if err != nil {
		return nil, err
	}
	lines := make([]model.CartLine, 0, len(m))
	for f, v := range m {
		id, err1 := strconv.ParseUint(f, 10, 64)
		q, err2 := strconv.ParseUint(v, 10, 32)
		if err1 != nil || err2 != nil || q == 0 {
			continue
		}
		lines = append(lines, model.CartLine{BookID: id, Quantity: uint32(q)})
	}
	return sortLines(lines), nil
}

func (s *RedisStore) Quantity(ctx context.Context, cartID string, bookID uint64) (uint32, error) {
	n, err := s.rdb.HGet(ctx, s.key(cartID), field(bookID)).Uint64()
	if err == redis.Nil {
		return 0, nil
	}
	return uint32(n), err
}

func (s *RedisStore) Add(ctx context.Context, cartID string, bookID uint64, qty uint32) (uint32, error) {
	key := s.key(cartID)
	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.HIncrBy(ctx, key, field(bookID), int64(qty))
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint32(incr.Val()), nil
}

func (s *RedisStore) Set(ctx context.Context, cartID string, bookID uint64, qty uint32) error {
	if qty == 0 {
		return s.Remove(ctx, cartID, bookID)
	}
	key := s.key(cartID)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, field(bookID), qty)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Remove(ctx context.Context, cartID string, bookIDs ...uint64) error {
	if len(bookIDs) == 0 {
		return nil
	}
	fields := make([]string, len(bookIDs))
	for i, id := range bookIDs {
		fields[i] = field(id)
	}
	key := s.key(cartID)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, key, fields...)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Clear(ctx context.Context, cartID string) error {
	return s.rdb.Del(ctx, s.key(cartID)).Err()
}
