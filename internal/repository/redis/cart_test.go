package redis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siyana/storefront/internal/domain"
	apperrors "github.com/siyana/storefront/pkg/errors"
)

func setupTestRedis(t *testing.T) (*CartRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCartRepository(client, 24*time.Hour, logger), mr
}

func sampleItem(id string, addedAt time.Time) domain.CartItem {
	return domain.CartItem{
		ID:       id,
		Name:     "Item " + id,
		Price:    decimal.NewFromInt(1500),
		Quantity: 1,
		Images:   []string{"https://cdn.example.com/" + id + ".jpg"},
		Category: "rings",
		AddedAt:  addedAt,
	}
}

func storeItem(t *testing.T, mr *miniredis.Miniredis, userID string, it domain.CartItem) {
	t.Helper()
	data, err := json.Marshal(it)
	require.NoError(t, err)
	mr.HSet(cartKey(userID), it.ID, string(data))
}

func put(t *testing.T, repo *CartRepository, userID string, it domain.CartItem) {
	t.Helper()
	_, err := repo.Mutate(context.Background(), userID, it.ID, func(*domain.CartItem, int) (*domain.CartItem, error) {
		return &it, nil
	})
	require.NoError(t, err)
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestCartRepository_List_SortedByAddedAt(t *testing.T) {
	repo, mr := setupTestRedis(t)
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	storeItem(t, mr, "u1", sampleItem("C", t0.Add(time.Hour)))
	storeItem(t, mr, "u1", sampleItem("B", t0))
	storeItem(t, mr, "u1", sampleItem("A", t0))

	items, err := repo.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "A", items[0].ID)
	assert.Equal(t, "B", items[1].ID)
	assert.Equal(t, "C", items[2].ID)
	assert.True(t, items[0].Price.Equal(decimal.NewFromInt(1500)))
}

func TestCartRepository_List_Empty(t *testing.T) {
	repo, _ := setupTestRedis(t)

	items, err := repo.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestCartRepository_List_SkipsMalformedDocuments(t *testing.T) {
	repo, mr := setupTestRedis(t)

	storeItem(t, mr, "u1", sampleItem("A", time.Now()))
	mr.HSet(cartKey("u1"), "broken", "{not json")
	mr.HSet(cartKey("u1"), "zero", `{"id":"zero","name":"Zero","price":"10","quantity":0}`)

	items, err := repo.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "A", items[0].ID)
}

func TestCartRepository_List_StoreDown(t *testing.T) {
	repo, mr := setupTestRedis(t)
	mr.Close()

	_, err := repo.List(context.Background(), "u1")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Mutate
// ---------------------------------------------------------------------------

func TestCartRepository_Mutate_InsertsAndSetsTTL(t *testing.T) {
	repo, mr := setupTestRedis(t)
	it := sampleItem("A", time.Now().UTC())

	got, err := repo.Mutate(context.Background(), "u1", "A", func(cur *domain.CartItem, lines int) (*domain.CartItem, error) {
		assert.Nil(t, cur)
		assert.Zero(t, lines)
		return &it, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "A", got.ID)

	assert.True(t, mr.Exists(cartKey("u1")))
	assert.Equal(t, 24*time.Hour, mr.TTL(cartKey("u1")))
}

func TestCartRepository_Mutate_UpdatesExisting(t *testing.T) {
	repo, _ := setupTestRedis(t)
	put(t, repo, "u1", sampleItem("A", time.Now().UTC()))
	put(t, repo, "u1", sampleItem("B", time.Now().UTC()))

	got, err := repo.Mutate(context.Background(), "u1", "A", func(cur *domain.CartItem, lines int) (*domain.CartItem, error) {
		require.NotNil(t, cur)
		assert.Equal(t, 2, lines)
		next := *cur
		next.Quantity = 7
		return &next, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got.Quantity)

	items, err := repo.List(context.Background(), "u1")
	require.NoError(t, err)
	for _, it := range items {
		if it.ID == "A" {
			assert.Equal(t, 7, it.Quantity)
		}
	}
}

func TestCartRepository_Mutate_NilLeavesCartUntouched(t *testing.T) {
	repo, mr := setupTestRedis(t)

	got, err := repo.Mutate(context.Background(), "u1", "A", func(*domain.CartItem, int) (*domain.CartItem, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists(cartKey("u1")))
}

func TestCartRepository_Mutate_PropagatesCallbackError(t *testing.T) {
	repo, _ := setupTestRedis(t)

	_, err := repo.Mutate(context.Background(), "u1", "A", func(*domain.CartItem, int) (*domain.CartItem, error) {
		return nil, apperrors.NotFound("cart item", "A")
	})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestCartRepository_Mutate_MalformedTreatedAsAbsent(t *testing.T) {
	repo, mr := setupTestRedis(t)
	mr.HSet(cartKey("u1"), "A", "garbage")

	_, err := repo.Mutate(context.Background(), "u1", "A", func(cur *domain.CartItem, lines int) (*domain.CartItem, error) {
		assert.Nil(t, cur)
		assert.Equal(t, 1, lines)
		return nil, nil
	})
	require.NoError(t, err)
}

func TestCartRepository_Mutate_ConcurrentIncrements(t *testing.T) {
	repo, _ := setupTestRedis(t)
	put(t, repo, "u1", sampleItem("A", time.Now().UTC()))

	const workers, perWorker = 4, 5
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				for {
					_, err := repo.Mutate(context.Background(), "u1", "A", func(cur *domain.CartItem, _ int) (*domain.CartItem, error) {
						next := *cur
						next.Quantity++
						return &next, nil
					})
					if errors.Is(err, apperrors.ErrConflict) {
						continue
					}
					assert.NoError(t, err)
					break
				}
			}
		}()
	}
	wg.Wait()

	items, err := repo.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1+workers*perWorker, items[0].Quantity)
}

// ---------------------------------------------------------------------------
// Delete / Clear / Count
// ---------------------------------------------------------------------------

func TestCartRepository_Delete_Idempotent(t *testing.T) {
	repo, _ := setupTestRedis(t)
	put(t, repo, "u1", sampleItem("A", time.Now().UTC()))
	put(t, repo, "u1", sampleItem("B", time.Now().UTC()))

	require.NoError(t, repo.Delete(context.Background(), "u1", "A"))
	require.NoError(t, repo.Delete(context.Background(), "u1", "A"))

	n, err := repo.Count(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCartRepository_Clear(t *testing.T) {
	repo, mr := setupTestRedis(t)
	put(t, repo, "u1", sampleItem("A", time.Now().UTC()))
	put(t, repo, "u2", sampleItem("A", time.Now().UTC()))

	require.NoError(t, repo.Clear(context.Background(), "u1"))
	require.NoError(t, repo.Clear(context.Background(), "u1"))

	assert.False(t, mr.Exists(cartKey("u1")))
	assert.True(t, mr.Exists(cartKey("u2")))
}

func TestCartRepository_Count_Empty(t *testing.T) {
	repo, _ := setupTestRedis(t)
	n, err := repo.Count(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

// ---------------------------------------------------------------------------
// RemoveLines
// ---------------------------------------------------------------------------

func TestCartRepository_RemoveLines_OnlyMatchingLines(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ordered := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	a := sampleItem("A", ordered)
	b := sampleItem("B", ordered.Add(time.Second))
	put(t, repo, "u1", a)
	put(t, repo, "u1", b)
	snapshot := []domain.CartItem{a, b}

	// Added after the snapshot was taken.
	put(t, repo, "u1", sampleItem("NEW", ordered.Add(time.Minute)))
	// B's quantity changed after the snapshot.
	bumped := b
	bumped.Quantity = 3
	put(t, repo, "u1", bumped)

	remaining, err := repo.RemoveLines(context.Background(), "u1", snapshot)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	items, err := repo.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "B", items[0].ID)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "NEW", items[1].ID)
	assert.Empty(t, mr.HGet(cartKey("u1"), "A"))
}

func TestCartRepository_RemoveLines_ReaddedItemSurvives(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ordered := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	snapshot := []domain.CartItem{sampleItem("A", ordered)}

	// A was checked out, then added again.
	put(t, repo, "u1", sampleItem("A", ordered.Add(time.Hour)))

	remaining, err := repo.RemoveLines(context.Background(), "u1", snapshot)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}

func TestCartRepository_RemoveLines_Idempotent(t *testing.T) {
	repo, mr := setupTestRedis(t)
	a := sampleItem("A", time.Now().UTC())
	put(t, repo, "u1", a)

	for range 2 {
		remaining, err := repo.RemoveLines(context.Background(), "u1", []domain.CartItem{a})
		require.NoError(t, err)
		assert.Zero(t, remaining)
	}
	assert.False(t, mr.Exists(cartKey("u1")))
}

func TestCartRepository_RemoveLines_StoreDown(t *testing.T) {
	repo, mr := setupTestRedis(t)
	mr.SetError("LOADING")

	_, err := repo.RemoveLines(context.Background(), "u1", []domain.CartItem{sampleItem("A", time.Now().UTC())})
	assert.Error(t, err)
}
