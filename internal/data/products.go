package data

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/kexinw/sit-marketplace-api/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ProductsStore performs product DB operations. Every status transition
// is a single conditional update whose filter encodes the legal source
// states, so concurrent transitions on one product serialize at the
// storage layer: exactly one writer matches, the rest re-read and get a
// classified error.
type ProductsStore struct {
	coll *mongo.Collection
}

// NewProductsStore returns a ProductsStore using the provided collection.
func NewProductsStore(coll *mongo.Collection) *ProductsStore {
	return &ProductsStore{coll: coll}
}

// ProductInput carries the fields a seller supplies when listing an item.
type ProductInput struct {
	Name        string
	Price       float64
	Description string
	Condition   string
	SellerID    string
	Image       string
	Category    string
}

// ProductUpdate carries a partial edit. Nil fields are left untouched.
// Status is accepted only as an idempotent restatement of the current
// value; actual transitions go through the lifecycle methods below.
type ProductUpdate struct {
	Name        *string
	Price       *float64
	Description *string
	Condition   *string
	Image       *string
	Category    *string
	Status      *string
}

// Create validates the input and inserts a new available product.
func (s *ProductsStore) Create(ctx context.Context, in ProductInput) (*Product, error) {
	if in.Price < 0 {
		return nil, validationf("price must not be negative")
	}
	required := map[string]string{
		"name":        in.Name,
		"description": in.Description,
		"condition":   in.Condition,
		"seller_id":   in.SellerID,
		"image":       in.Image,
		"category":    in.Category,
	}
	for field, value := range required {
		if value == "" {
			return nil, validationf("%s is required", field)
		}
	}

	product := &Product{
		Name:        in.Name,
		Price:       in.Price,
		Date:        time.Now(),
		Description: in.Description,
		Condition:   in.Condition,
		SellerID:    in.SellerID,
		Image:       in.Image,
		Category:    in.Category,
		Status:      ProductAvailable,
	}

	result, err := s.coll.InsertOne(ctx, product)
	if err != nil {
		return nil, err
	}
	product.ID = result.InsertedID.(bson.ObjectID)
	return product, nil
}

// Edit applies the supplied fields to an existing product. A status in
// the update must equal the stored status; anything else is rejected so
// lifecycle transitions cannot be smuggled in through an edit.
func (s *ProductsStore) Edit(ctx context.Context, id bson.ObjectID, upd ProductUpdate) (*Product, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	set := bson.M{}
	if upd.Name != nil {
		if *upd.Name == "" {
			return nil, validationf("name must not be empty")
		}
		set["name"] = *upd.Name
	}
	if upd.Price != nil {
		if *upd.Price < 0 {
			return nil, validationf("price must not be negative")
		}
		set["price"] = *upd.Price
	}
	if upd.Description != nil {
		if *upd.Description == "" {
			return nil, validationf("description must not be empty")
		}
		set["description"] = *upd.Description
	}
	if upd.Condition != nil {
		set["condition"] = *upd.Condition
	}
	if upd.Image != nil {
		set["image"] = *upd.Image
	}
	if upd.Category != nil {
		if *upd.Category == "" {
			return nil, validationf("category must not be empty")
		}
		set["category"] = *upd.Category
	}
	if upd.Status != nil && *upd.Status != current.Status {
		return nil, validationf("status cannot be changed through edit")
	}

	if len(set) == 0 {
		return current, nil
	}

	// Guard on the status read above so an edit never lands on top of
	// a transition it has not seen.
	res := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": current.Status},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var product Product
	if err := res.Decode(&product); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, conflictf("product %s changed state during edit", id.Hex())
		}
		return nil, err
	}
	return &product, nil
}

// Remove marks a product removed. Removing an already-removed product
// returns the record unchanged. The document is never deleted: favorite
// lists may still reference its id.
func (s *ProductsStore) Remove(ctx context.Context, id bson.ObjectID) (*Product, error) {
	res := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": ProductRemoved}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var product Product
	if err := res.Decode(&product); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFoundf("product %s", id.Hex())
		}
		return nil, err
	}
	return &product, nil
}

// Reserve transitions an available product to reserved for the given
// buyer. Re-reserving with the same buyer is a no-op.
func (s *ProductsStore) Reserve(ctx context.Context, id bson.ObjectID, buyerID string) (*Product, error) {
	if buyerID == "" {
		return nil, validationf("buyer_id is required")
	}

	product, err := s.transition(ctx,
		bson.M{"_id": id, "status": ProductAvailable},
		bson.M{"$set": bson.M{"status": ProductReserved, "buyer_id": buyerID}},
	)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	return s.classify(ctx, id, func(p *Product) (*Product, error) {
		if p.Status == ProductReserved && p.BuyerID == buyerID {
			return p, nil
		}
		return nil, invalidStatef("product %s is %s and cannot be reserved", id.Hex(), p.Status)
	})
}

// Sell transitions a product to sold. An available product sells to any
// buyer; a reserved one only to the buyer holding the reservation.
// Repeating the call with the recorded buyer returns the sold record.
func (s *ProductsStore) Sell(ctx context.Context, id bson.ObjectID, buyerID string) (*Product, error) {
	if buyerID == "" {
		return nil, validationf("buyer_id is required")
	}

	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"status": ProductAvailable},
			bson.M{"status": ProductReserved, "buyer_id": buyerID},
		},
	}
	product, err := s.transition(ctx, filter,
		bson.M{"$set": bson.M{"status": ProductSold, "buyer_id": buyerID}},
	)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	return s.classify(ctx, id, func(p *Product) (*Product, error) {
		if p.Status == ProductSold && p.BuyerID == buyerID {
			return p, nil
		}
		return nil, invalidStatef("product %s is %s and cannot be sold to %s", id.Hex(), p.Status, buyerID)
	})
}

// Relist reopens a reserved product. Only the seller may relist; the
// reservation's buyer is cleared. Relisting an already-available product
// owned by the seller is a no-op.
func (s *ProductsStore) Relist(ctx context.Context, id bson.ObjectID, sellerID string) (*Product, error) {
	if sellerID == "" {
		return nil, validationf("seller_id is required")
	}

	product, err := s.transition(ctx,
		bson.M{"_id": id, "status": ProductReserved, "seller_id": sellerID},
		bson.M{
			"$set":   bson.M{"status": ProductAvailable},
			"$unset": bson.M{"buyer_id": ""},
		},
	)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	return s.classify(ctx, id, func(p *Product) (*Product, error) {
		if p.SellerID != sellerID {
			return nil, invalidStatef("only the seller may relist product %s", id.Hex())
		}
		if p.Status == ProductAvailable {
			return p, nil
		}
		return nil, invalidStatef("product %s is %s and cannot be relisted", id.Hex(), p.Status)
	})
}

// transition runs one conditional update and decodes the updated doc.
// A miss surfaces as mongo.ErrNoDocuments for the caller to classify.
func (s *ProductsStore) transition(ctx context.Context, filter, update bson.M) (*Product, error) {
	res := s.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var product Product
	if err := res.Decode(&product); err != nil {
		return nil, err
	}
	return &product, nil
}

// classify re-reads a product after a conditional update missed and maps
// the actual state to not-found, an idempotent success or invalid-state.
func (s *ProductsStore) classify(ctx context.Context, id bson.ObjectID, f func(*Product) (*Product, error)) (*Product, error) {
	product, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return f(product)
}

// All returns every product, removed ones included; callers filter.
func (s *ProductsStore) All(ctx context.Context) ([]*Product, error) {
	return s.find(ctx, bson.M{})
}

// GetByID finds a product by id.
func (s *ProductsStore) GetByID(ctx context.Context, id bson.ObjectID) (*Product, error) {
	var product Product
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFoundf("product %s", id.Hex())
		}
		return nil, err
	}
	return &product, nil
}

// GetByIDs bulk-fetches products. Unknown ids are simply absent from the
// result; the caller asked for a view, not a guarantee.
func (s *ProductsStore) GetByIDs(ctx context.Context, ids []bson.ObjectID) ([]*Product, error) {
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// GetBySeller returns the products listed by one seller.
func (s *ProductsStore) GetBySeller(ctx context.Context, sellerID string) ([]*Product, error) {
	return s.find(ctx, bson.M{"seller_id": sellerID})
}

// GetByBuyer returns the products a buyer has reserved or bought.
func (s *ProductsStore) GetByBuyer(ctx context.Context, buyerID string) ([]*Product, error) {
	return s.find(ctx, bson.M{"buyer_id": buyerID})
}

// GetByCategory returns the products in a category.
func (s *ProductsStore) GetByCategory(ctx context.Context, category string) ([]*Product, error) {
	return s.find(ctx, bson.M{"category": category})
}

// GetByPriceRange returns products with low <= price <= high. Callers
// omitting the lower bound pass 0.
func (s *ProductsStore) GetByPriceRange(ctx context.Context, low, high float64) ([]*Product, error) {
	if low < 0 || high < low {
		return nil, validationf("invalid price range [%v, %v]", low, high)
	}
	return s.find(ctx, bson.M{"price": bson.M{"$gte": low, "$lte": high}})
}

// Search does a case-insensitive substring match over name and
// description. No ranking; document order is whatever the store returns.
func (s *ProductsStore) Search(ctx context.Context, term string) ([]*Product, error) {
	term = normalize.Term(term)
	if term == "" {
		return nil, validationf("search term is required")
	}
	pattern := bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}
	return s.find(ctx, bson.M{"$or": bson.A{
		bson.M{"name": pattern},
		bson.M{"description": pattern},
	}})
}

func (s *ProductsStore) find(ctx context.Context, filter bson.M) ([]*Product, error) {
	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	products := []*Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}
