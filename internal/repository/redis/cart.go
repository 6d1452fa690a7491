package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/siyana/storefront/internal/domain"
	"github.com/siyana/storefront/internal/repository"
	"github.com/siyana/storefront/pkg/database"
	apperrors "github.com/siyana/storefront/pkg/errors"
)

const (
	keyPrefix    = "cart:"
	maxTxRetries = 5
)

// CartRepository keeps one Redis hash per user: field = item ID, value = the
// item's JSON document.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ repository.CartRepository = (*CartRepository)(nil)

// NewCartRepository creates a Redis-backed cart repository. Every write
// refreshes the key's TTL; a zero TTL keeps carts forever.
func NewCartRepository(client *redis.Client, ttl time.Duration, logger *slog.Logger) *CartRepository {
	return &CartRepository{client: client, ttl: ttl, logger: logger}
}

func cartKey(userID string) string {
	return keyPrefix + userID
}

// List returns the cart's items sorted by AddedAt then ID.
func (r *CartRepository) List(ctx context.Context, userID string) (items []domain.CartItem, err error) {
	key := cartKey(userID)
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "cart.list", "HGETALL "+keyPrefix+"<uid>")
	defer func() { end(err) }()

	docs, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall cart: %w", err)
	}

	items = make([]domain.CartItem, 0, len(docs))
	for field, raw := range docs {
		it, perr := domain.ParseCartItem(field, []byte(raw))
		if perr != nil {
			r.logger.WarnContext(ctx, "skipping malformed cart item",
				slog.String("user_id", userID),
				slog.String("item_id", field),
				slog.String("error", perr.Error()),
			)
			continue
		}
		items = append(items, it)
	}
	domain.SortItems(items)
	return items, nil
}

// Mutate runs fn inside a WATCH/MULTI transaction on the user's hash and
// retries when another writer touched the cart in between.
func (r *CartRepository) Mutate(ctx context.Context, userID, itemID string, fn repository.MutateFunc) (result *domain.CartItem, err error) {
	key := cartKey(userID)
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "cart.mutate", "WATCH/HSET "+keyPrefix+"<uid>")
	defer func() { end(err) }()

	txf := func(tx *redis.Tx) error {
		current, err := r.load(ctx, tx, key, userID, itemID)
		if err != nil {
			return err
		}
		lines, err := tx.HLen(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("redis hlen cart: %w", err)
		}

		next, err := fn(current, int(lines))
		if err != nil {
			return err
		}
		if next == nil {
			result = current
			return nil
		}

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal cart item: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, itemID, data)
			if r.ttl > 0 {
				pipe.Expire(ctx, key, r.ttl)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("redis hset cart item: %w", err)
		}
		result = next
		return nil
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return result, err
	}
	return nil, apperrors.Conflict("cart was modified concurrently, please retry")
}

// load returns nil when the field is absent or its document is unusable.
func (r *CartRepository) load(ctx context.Context, tx *redis.Tx, key, userID, itemID string) (*domain.CartItem, error) {
	raw, err := tx.HGet(ctx, key, itemID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget cart item: %w", err)
	}

	it, err := domain.ParseCartItem(itemID, raw)
	if err != nil {
		r.logger.WarnContext(ctx, "overwriting malformed cart item",
			slog.String("user_id", userID),
			slog.String("item_id", itemID),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	return &it, nil
}

// Delete removes one item.
func (r *CartRepository) Delete(ctx context.Context, userID, itemID string) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "cart.delete", "HDEL "+keyPrefix+"<uid>")
	defer func() { end(err) }()

	if err = r.client.HDel(ctx, cartKey(userID), itemID).Err(); err != nil {
		return fmt.Errorf("redis hdel cart item: %w", err)
	}
	return nil
}

// Clear drops the whole hash in one command.
func (r *CartRepository) Clear(ctx context.Context, userID string) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "cart.clear", "DEL "+keyPrefix+"<uid>")
	defer func() { end(err) }()

	if err = r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}
	return nil
}

// RemoveLines deletes the fields whose stored document still matches one of
// lines, inside a WATCH/MULTI transaction so a concurrent add or quantity
// change is never deleted.
func (r *CartRepository) RemoveLines(ctx context.Context, userID string, lines []domain.CartItem) (remaining int, err error) {
	key := cartKey(userID)
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "cart.remove_lines", "WATCH/HDEL "+keyPrefix+"<uid>")
	defer func() { end(err) }()

	fields := make([]string, len(lines))
	for i, l := range lines {
		fields[i] = l.ID
	}

	txf := func(tx *redis.Tx) error {
		var matched []string
		if len(fields) > 0 {
			stored, err := tx.HMGet(ctx, key, fields...).Result()
			if err != nil {
				return fmt.Errorf("redis hmget cart: %w", err)
			}
			for i, v := range stored {
				raw, ok := v.(string)
				if !ok {
					continue
				}
				it, perr := domain.ParseCartItem(fields[i], []byte(raw))
				if perr != nil || !it.SameLine(lines[i]) {
					continue
				}
				matched = append(matched, fields[i])
			}
		}

		var hlen *redis.IntCmd
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(matched) > 0 {
				pipe.HDel(ctx, key, matched...)
			}
			hlen = pipe.HLen(ctx, key)
			return nil
		})
		if err != nil {
			return fmt.Errorf("redis hdel cart lines: %w", err)
		}
		remaining = int(hlen.Val())
		return nil
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return remaining, nil
	}
	return 0, apperrors.Conflict("cart was modified concurrently, please retry")
}

// Count returns the number of lines.
func (r *CartRepository) Count(ctx context.Context, userID string) (n int, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "cart.count", "HLEN "+keyPrefix+"<uid>")
	defer func() { end(err) }()

	v, err := r.client.HLen(ctx, cartKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hlen cart: %w", err)
	}
	return int(v), nil
}
