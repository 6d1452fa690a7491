// Command seed loads a starter Siyana catalog into MongoDB: categories,
// products, offers, home carousel slides and today's gold rate. It is safe
// to run repeatedly.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/siyana/storefront/internal/config"
	"github.com/siyana/storefront/internal/domain"
	mongorepo "github.com/siyana/storefront/internal/repository/mongo"
	"github.com/siyana/storefront/pkg/database"
	"github.com/siyana/storefront/pkg/logger"
	"github.com/siyana/storefront/pkg/slug"
)

type productDef struct {
	name     string
	category string
	price    string
	original string
	purity   string
	grams    string
	inStock  bool
}

var categories = []string{"Rings", "Necklaces", "Earrings", "Bangles", "Temple Jewellery"}

var products = []productDef{
	{"Kasu Ring", "Rings", "5000", "", "22K", "2.4", true},
	{"Lotus Solitaire Ring", "Rings", "18750", "21000", "18K", "3.1", true},
	{"Mango Mala", "Necklaces", "3000", "4000", "22K", "1.2", true},
	{"Kerala Palakka Necklace", "Necklaces", "96500", "", "22K", "14.8", true},
	{"Jhumka Drops", "Earrings", "8200", "", "22K", "1.3", true},
	{"Peacock Studs", "Earrings", "4650.50", "5200", "18K", "0.9", false},
	{"Plain Kada", "Bangles", "41200", "", "22K", "6.4", true},
	{"Lakshmi Coin Haram", "Temple Jewellery", "128000", "135000", "22K", "19.6", true},
}

func buildSeed(now time.Time) mongorepo.CatalogSeed {
	var s mongorepo.CatalogSeed

	for _, name := range categories {
		s.Categories = append(s.Categories, domain.Category{
			ID:   slug.Generate(name),
			Name: name,
			Slug: slug.Generate(name),
		})
	}

	for _, def := range products {
		catID := slug.Generate(def.category)
		id := slug.Generate(def.name)
		p := domain.Product{
			ID:         id,
			Name:       def.name,
			Slug:       id,
			Price:      decimal.RequireFromString(def.price),
			Images:     []string{"/images/products/" + id + ".jpg"},
			CategoryID: catID,
			Category:   &domain.CategoryRef{ID: catID, Name: def.category},
			Purity:     def.purity,
			InStock:    def.inStock,
			CreatedAt:  &now,
			UpdatedAt:  &now,
		}
		if def.original != "" {
			op := decimal.RequireFromString(def.original)
			p.OriginalPrice = &op
		}
		if def.grams != "" {
			g := decimal.RequireFromString(def.grams)
			p.WeightGrams = &g
		}
		s.Products = append(s.Products, p)
	}

	s.Offers = []domain.Offer{
		{ID: "making-charge-off", Title: "Flat 20% off making charges", Description: "On all temple jewellery", Link: "/categories/temple-jewellery"},
		{ID: "exchange", Title: "Old gold exchange", Description: "Best value on your old gold"},
	}
	s.Carousel = []domain.CarouselItem{
		{ID: "bridal", Title: "Bridal Collection", Subtitle: "Handcrafted heirlooms", Image: "/images/carousel/bridal.jpg", Link: "/categories/necklaces"},
		{ID: "daily-wear", Title: "Daily Wear", Image: "/images/carousel/daily-wear.jpg", Link: "/categories/rings"},
	}

	perGram := decimal.NewFromInt(6525)
	s.GoldRates = []domain.GoldRate{{
		ID:        now.Format("2006-01-02"),
		PerGram:   perGram,
		PerPavan:  perGram.Mul(decimal.NewFromInt(8)),
		Date:      now.Format("2006-01-02"),
		CreatedAt: now,
	}}
	return s
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("storefront-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	mongoCfg := database.DefaultMongoConfig()
	mongoCfg.URI = cfg.MongoURI
	mongoCfg.Database = cfg.MongoDatabase
	client, err := database.NewMongoClient(ctx, mongoCfg, log)
	if err != nil {
		log.Error("failed to connect to mongo", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	db := client.Database(cfg.MongoDatabase)
	res, err := mongorepo.NewCatalogRepository(db).Seed(ctx, buildSeed(time.Now().UTC()))
	if err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := mongorepo.NewWishlistRepository(db).EnsureIndexes(ctx); err != nil {
		log.Error("ensure wishlist indexes", slog.String("error", err.Error()))
		os.Exit(1)
	}

	for coll, n := range res {
		log.Info("seeded", slog.String("collection", coll), slog.Int("documents", n))
	}
}
