package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/siyana/storefront/internal/domain"
	"github.com/siyana/storefront/internal/repository"
	"github.com/siyana/storefront/pkg/database"
)

// WishlistsCollection holds one document per (user, item).
const WishlistsCollection = "wishlists"

type wishlistDoc struct {
	UserID        string    `bson:"userId"`
	ItemID        string    `bson:"itemId"`
	Name          string    `bson:"name"`
	Price         money     `bson:"price"`
	OriginalPrice *money    `bson:"originalPrice,omitempty"`
	Images        []string  `bson:"images,omitempty"`
	Category      string    `bson:"category,omitempty"`
	AddedAt       time.Time `bson:"addedAt"`
}

func (d wishlistDoc) toDomain() domain.WishlistItem {
	return domain.WishlistItem{
		ID:            d.ItemID,
		Name:          d.Name,
		Price:         d.Price.Decimal,
		OriginalPrice: d.OriginalPrice.decimalPtr(),
		Images:        d.Images,
		Category:      d.Category,
		AddedAt:       d.AddedAt,
	}
}

// WishlistRepository stores wishlists in MongoDB.
type WishlistRepository struct {
	coll *mongo.Collection
}

var _ repository.WishlistRepository = (*WishlistRepository)(nil)

// NewWishlistRepository creates a wishlist repository over db.
func NewWishlistRepository(db *mongo.Database) *WishlistRepository {
	return &WishlistRepository{coll: db.Collection(WishlistsCollection)}
}

// EnsureIndexes creates the unique (userId, itemId) index upserts rely on.
func (r *WishlistRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "itemId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("wishlist_user_item"),
	})
	if err != nil {
		return fmt.Errorf("create wishlist index: %w", err)
	}
	return nil
}

func itemFilter(userID, itemID string) bson.D {
	return bson.D{{Key: "userId", Value: userID}, {Key: "itemId", Value: itemID}}
}

// Exists reports whether the user already saved itemID.
func (r *WishlistRepository) Exists(ctx context.Context, userID, itemID string) (found bool, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "wishlists.exists", "countDocuments wishlists")
	defer func() { end(err) }()

	n, err := r.coll.CountDocuments(ctx, itemFilter(userID, itemID), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count wishlist item: %w", err)
	}
	return n > 0, nil
}

// Upsert replaces the user's copy of the item, inserting it when absent.
func (r *WishlistRepository) Upsert(ctx context.Context, userID string, item domain.WishlistItem) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "wishlists.upsert", "replaceOne wishlists")
	defer func() { end(err) }()

	doc := wishlistDoc{
		UserID:        userID,
		ItemID:        item.ID,
		Name:          item.Name,
		Price:         newMoney(item.Price),
		OriginalPrice: moneyPtr(item.OriginalPrice),
		Images:        item.Images,
		Category:      item.Category,
		AddedAt:       item.AddedAt,
	}

	_, err = r.coll.ReplaceOne(ctx, itemFilter(userID, item.ID), doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert wishlist item: %w", err)
	}
	return nil
}

// List returns the wishlist, most recently added first.
func (r *WishlistRepository) List(ctx context.Context, userID string) (out []domain.WishlistItem, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "wishlists.list", "find wishlists")
	defer func() { end(err) }()

	docs, err := findAll[wishlistDoc](ctx, r.coll, bson.D{{Key: "userId", Value: userID}},
		options.Find().SetSort(bson.D{{Key: "addedAt", Value: -1}, {Key: "itemId", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out = make([]domain.WishlistItem, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

// Delete removes one item from the user's wishlist.
func (r *WishlistRepository) Delete(ctx context.Context, userID, itemID string) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "wishlists.delete", "deleteOne wishlists")
	defer func() { end(err) }()

	if _, err = r.coll.DeleteOne(ctx, itemFilter(userID, itemID)); err != nil {
		return fmt.Errorf("delete wishlist item: %w", err)
	}
	return nil
}
