package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/siyana/storefront/internal/domain"
)

// CatalogSeed is a full catalog snapshot to load into an empty or existing
// database.
type CatalogSeed struct {
	Categories []domain.Category
	Products   []domain.Product
	Offers     []domain.Offer
	Carousel   []domain.CarouselItem
	GoldRates  []domain.GoldRate
}

// SeedResult counts replaced documents per collection.
type SeedResult map[string]int

func categoryDocFrom(c domain.Category) categoryDoc {
	return categoryDoc{ID: c.ID, Name: c.Name, Slug: c.Slug, Description: c.Description, Image: c.Image}
}

func productDocFrom(p domain.Product) productDoc {
	inStock := p.InStock
	d := productDoc{
		ID:            p.ID,
		Name:          p.Name,
		Slug:          p.Slug,
		Description:   p.Description,
		Price:         newMoney(p.Price),
		OriginalPrice: moneyPtr(p.OriginalPrice),
		Images:        p.Images,
		CategoryID:    p.CategoryID,
		Purity:        p.Purity,
		Weight:        moneyPtr(p.WeightGrams),
		InStock:       &inStock,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Category != nil {
		d.Category = &categoryRefDoc{ID: p.Category.ID, Name: p.Category.Name}
	}
	return d
}

func goldRateDocFrom(g domain.GoldRate) goldRateDoc {
	return goldRateDoc{
		ID:        g.ID,
		PerGram:   newMoney(g.PerGram),
		PerPavan:  newMoney(g.PerPavan),
		Date:      g.Date,
		CreatedAt: g.CreatedAt,
	}
}

// Seed upserts every document in s by _id. Running it twice leaves the
// catalog unchanged.
func (r *CatalogRepository) Seed(ctx context.Context, s CatalogSeed) (SeedResult, error) {
	batches := []struct {
		coll string
		ids  []string
		docs []any
	}{
		{coll: CategoriesCollection},
		{coll: ProductsCollection},
		{coll: OffersCollection},
		{coll: CarouselCollection},
		{coll: GoldRatesCollection},
	}
	for _, c := range s.Categories {
		batches[0].ids = append(batches[0].ids, c.ID)
		batches[0].docs = append(batches[0].docs, categoryDocFrom(c))
	}
	for _, p := range s.Products {
		batches[1].ids = append(batches[1].ids, p.ID)
		batches[1].docs = append(batches[1].docs, productDocFrom(p))
	}
	for _, o := range s.Offers {
		batches[2].ids = append(batches[2].ids, o.ID)
		batches[2].docs = append(batches[2].docs, offerDoc(o))
	}
	for _, c := range s.Carousel {
		batches[3].ids = append(batches[3].ids, c.ID)
		batches[3].docs = append(batches[3].docs, carouselDoc(c))
	}
	for _, g := range s.GoldRates {
		batches[4].ids = append(batches[4].ids, g.ID)
		batches[4].docs = append(batches[4].docs, goldRateDocFrom(g))
	}

	res := SeedResult{}
	for _, b := range batches {
		if len(b.docs) == 0 {
			continue
		}
		models := make([]mongo.WriteModel, len(b.docs))
		for i, doc := range b.docs {
			if b.ids[i] == "" {
				return res, fmt.Errorf("seed %s: document %d has no id", b.coll, i)
			}
			models[i] = mongo.NewReplaceOneModel().
				SetFilter(bson.D{{Key: "_id", Value: b.ids[i]}}).
				SetReplacement(doc).
				SetUpsert(true)
		}
		if _, err := r.db.Collection(b.coll).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
			return res, fmt.Errorf("seed %s: %w", b.coll, err)
		}
		res[b.coll] = len(models)
	}
	return res, nil
}
