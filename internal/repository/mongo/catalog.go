package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/siyana/storefront/internal/domain"
	"github.com/siyana/storefront/internal/repository"
	"github.com/siyana/storefront/pkg/database"
	apperrors "github.com/siyana/storefront/pkg/errors"
	"github.com/siyana/storefront/pkg/slug"
)

// Collection names.
const (
	CategoriesCollection = "categories"
	ProductsCollection   = "products"
	OffersCollection     = "offers"
	CarouselCollection   = "home_carousel"
	GoldRatesCollection  = "gold_rates"
)

type categoryDoc struct {
	ID          string `bson:"_id"`
	Name        string `bson:"name"`
	Slug        string `bson:"slug,omitempty"`
	Description string `bson:"description,omitempty"`
	Image       string `bson:"image,omitempty"`
}

func (d categoryDoc) toDomain() domain.Category {
	s := d.Slug
	if s == "" {
		s = slug.Generate(d.Name)
	}
	return domain.Category{ID: d.ID, Name: d.Name, Slug: s, Description: d.Description, Image: d.Image}
}

type categoryRefDoc struct {
	ID   string `bson:"id"`
	Name string `bson:"name,omitempty"`
}

type productDoc struct {
	ID            string          `bson:"_id"`
	Name          string          `bson:"name"`
	Slug          string          `bson:"slug,omitempty"`
	Description   string          `bson:"description,omitempty"`
	Price         money           `bson:"price"`
	OriginalPrice *money          `bson:"originalPrice,omitempty"`
	Images        []string        `bson:"images,omitempty"`
	CategoryID    string          `bson:"category_id,omitempty"`
	Category      *categoryRefDoc `bson:"category,omitempty"`
	Purity        string          `bson:"purity,omitempty"`
	Weight        *money          `bson:"weight,omitempty"`
	InStock       *bool           `bson:"inStock,omitempty"`
	CreatedAt     *time.Time      `bson:"createdAt,omitempty"`
	UpdatedAt     *time.Time      `bson:"updatedAt,omitempty"`
}

func (d productDoc) toDomain() domain.Product {
	p := domain.Product{
		ID:            d.ID,
		Name:          d.Name,
		Slug:          d.Slug,
		Description:   d.Description,
		Price:         d.Price.Decimal,
		OriginalPrice: d.OriginalPrice.decimalPtr(),
		Images:        d.Images,
		CategoryID:    d.CategoryID,
		Purity:        d.Purity,
		WeightGrams:   d.Weight.decimalPtr(),
		InStock:       d.InStock == nil || *d.InStock,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	if p.Slug == "" {
		p.Slug = slug.Generate(d.Name)
	}
	if d.Category != nil {
		p.Category = &domain.CategoryRef{ID: d.Category.ID, Name: d.Category.Name}
		if p.CategoryID == "" {
			p.CategoryID = d.Category.ID
		}
	}
	return p
}

type offerDoc struct {
	ID          string `bson:"_id"`
	Title       string `bson:"title"`
	Description string `bson:"description,omitempty"`
	Image       string `bson:"image,omitempty"`
	Link        string `bson:"link,omitempty"`
}

type carouselDoc struct {
	ID       string `bson:"_id"`
	Title    string `bson:"title,omitempty"`
	Subtitle string `bson:"subtitle,omitempty"`
	Image    string `bson:"image"`
	Link     string `bson:"link,omitempty"`
}

type goldRateDoc struct {
	ID        string    `bson:"_id"`
	PerGram   money     `bson:"perGram"`
	PerPavan  money     `bson:"perPavan"`
	Date      string    `bson:"date"`
	CreatedAt time.Time `bson:"createdAt"`
}

// CatalogRepository reads the storefront catalog from MongoDB.
type CatalogRepository struct {
	db *mongo.Database
}

var _ repository.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository creates a catalog repository over db.
func NewCatalogRepository(db *mongo.Database) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// findAll decodes every document matched by filter.
func findAll[D any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOptions) ([]D, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	defer cur.Close(ctx)

	out := []D{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	return out, nil
}

// ListCategories returns categories in reverse insertion order.
func (r *CatalogRepository) ListCategories(ctx context.Context) (out []domain.Category, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "categories.list", "find categories")
	defer func() { end(err) }()

	docs, err := findAll[categoryDoc](ctx, r.db.Collection(CategoriesCollection), bson.D{},
		options.Find().SetSort(bson.D{{Key: "$natural", Value: -1}}))
	if err != nil {
		return nil, err
	}
	out = make([]domain.Category, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

// GetCategory matches the document ID or the slug form of idOrSlug.
func (r *CatalogRepository) GetCategory(ctx context.Context, idOrSlug string) (c *domain.Category, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "categories.get", "findOne categories")
	defer func() { end(err) }()

	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "_id", Value: idOrSlug}},
		bson.D{{Key: "slug", Value: slug.Generate(idOrSlug)}},
	}}}

	var doc categoryDoc
	err = r.db.Collection(CategoriesCollection).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("category", idOrSlug)
	}
	if err != nil {
		return nil, fmt.Errorf("find category: %w", err)
	}
	cat := doc.toDomain()
	return &cat, nil
}

// ListProductsByCategory pages through products whose category_id matches,
// falling back to the embedded category.id used by older documents.
func (r *CatalogRepository) ListProductsByCategory(ctx context.Context, categoryID string, offset, limit int) (out []domain.Product, total int, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "products.by_category", "find products")
	defer func() { end(err) }()

	coll := r.db.Collection(ProductsCollection)

	filter := bson.D{{Key: "category_id", Value: categoryID}}
	n, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	if n == 0 {
		filter = bson.D{{Key: "category.id", Value: categoryID}}
		if n, err = coll.CountDocuments(ctx, filter); err != nil {
			return nil, 0, fmt.Errorf("count products by nested category: %w", err)
		}
	}
	if n == 0 || int64(offset) >= n {
		return []domain.Product{}, int(n), nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	docs, err := findAll[productDoc](ctx, coll, filter, opts)
	if err != nil {
		return nil, 0, err
	}

	out = make([]domain.Product, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, int(n), nil
}

// GetProduct loads one product by ID.
func (r *CatalogRepository) GetProduct(ctx context.Context, productID string) (p *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "products.get", "findOne products")
	defer func() { end(err) }()

	var doc productDoc
	err = r.db.Collection(ProductsCollection).FindOne(ctx, bson.D{{Key: "_id", Value: productID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("product", productID)
	}
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	prod := doc.toDomain()
	return &prod, nil
}

// ListOffers returns every offer banner.
func (r *CatalogRepository) ListOffers(ctx context.Context) (out []domain.Offer, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "offers.list", "find offers")
	defer func() { end(err) }()

	docs, err := findAll[offerDoc](ctx, r.db.Collection(OffersCollection), bson.D{})
	if err != nil {
		return nil, err
	}
	out = make([]domain.Offer, len(docs))
	for i, d := range docs {
		out[i] = domain.Offer(d)
	}
	return out, nil
}

// ListCarousel returns the home page slides.
func (r *CatalogRepository) ListCarousel(ctx context.Context) (out []domain.CarouselItem, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "carousel.list", "find home_carousel")
	defer func() { end(err) }()

	docs, err := findAll[carouselDoc](ctx, r.db.Collection(CarouselCollection), bson.D{})
	if err != nil {
		return nil, err
	}
	out = make([]domain.CarouselItem, len(docs))
	for i, d := range docs {
		out[i] = domain.CarouselItem(d)
	}
	return out, nil
}

// LatestGoldRate returns the most recently published rate.
func (r *CatalogRepository) LatestGoldRate(ctx context.Context) (g *domain.GoldRate, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "gold_rates.latest", "findOne gold_rates")
	defer func() { end(err) }()

	var doc goldRateDoc
	err = r.db.Collection(GoldRatesCollection).
		FindOne(ctx, bson.D{}, options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("gold rate", "latest")
	}
	if err != nil {
		return nil, fmt.Errorf("find gold rate: %w", err)
	}
	return &domain.GoldRate{
		ID:        doc.ID,
		PerGram:   doc.PerGram.Decimal,
		PerPavan:  doc.PerPavan.Decimal,
		Date:      doc.Date,
		CreatedAt: doc.CreatedAt,
	}, nil
}
