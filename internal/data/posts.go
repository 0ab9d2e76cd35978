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

// acceptingStatuses are the post states that still take new candidates
// and may be matched or retrieved from. "reposted" is "open again".
var acceptingStatuses = bson.A{PostOpen, PostReposted}

// PostsStore performs post DB operations, including the candidate-set
// bookkeeping and the open → matched → retrieved lifecycle. The same
// conditional-update discipline as ProductsStore applies: the filter is
// the compare, the update is the swap, and a miss is classified by
// re-reading the document.
type PostsStore struct {
	coll *mongo.Collection
}

// NewPostsStore returns a PostsStore using the provided collection.
func NewPostsStore(coll *mongo.Collection) *PostsStore {
	return &PostsStore{coll: coll}
}

// PostInput carries the fields a buyer supplies when requesting an item.
type PostInput struct {
	BuyerID     string
	Item        string
	Category    string
	Price       float64
	Condition   string
	Description string
}

// PostUpdate carries a partial edit; nil fields are untouched. Status is
// accepted only as an idempotent restatement of the current value.
type PostUpdate struct {
	Item        *string
	Category    *string
	Price       *float64
	Condition   *string
	Description *string
	Status      *string
}

// Create validates the input and inserts a new open post with an empty
// candidate set.
func (s *PostsStore) Create(ctx context.Context, in PostInput) (*Post, error) {
	if in.Price < 0 {
		return nil, validationf("price must not be negative")
	}
	required := map[string]string{
		"buyer_id":    in.BuyerID,
		"item":        in.Item,
		"category":    in.Category,
		"condition":   in.Condition,
		"description": in.Description,
	}
	for field, value := range required {
		if value == "" {
			return nil, validationf("%s is required", field)
		}
	}

	post := &Post{
		BuyerID:         in.BuyerID,
		Item:            in.Item,
		Category:        in.Category,
		Price:           in.Price,
		Condition:       in.Condition,
		Date:            time.Now(),
		Description:     in.Description,
		Status:          PostOpen,
		PossibleSellers: []string{},
	}

	result, err := s.coll.InsertOne(ctx, post)
	if err != nil {
		return nil, err
	}
	post.ID = result.InsertedID.(bson.ObjectID)
	return post, nil
}

// Edit applies the supplied fields. Matched and retrieved are reachable
// only through the lifecycle methods, and any status change at all is
// rejected here; restating the current status is a no-op.
func (s *PostsStore) Edit(ctx context.Context, id bson.ObjectID, upd PostUpdate) (*Post, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	set := bson.M{}
	if upd.Item != nil {
		if *upd.Item == "" {
			return nil, validationf("item must not be empty")
		}
		set["item"] = *upd.Item
	}
	if upd.Category != nil {
		if *upd.Category == "" {
			return nil, validationf("category must not be empty")
		}
		set["category"] = *upd.Category
	}
	if upd.Price != nil {
		if *upd.Price < 0 {
			return nil, validationf("price must not be negative")
		}
		set["price"] = *upd.Price
	}
	if upd.Condition != nil {
		set["condition"] = *upd.Condition
	}
	if upd.Description != nil {
		if *upd.Description == "" {
			return nil, validationf("description must not be empty")
		}
		set["description"] = *upd.Description
	}
	if upd.Status != nil && *upd.Status != current.Status {
		return nil, validationf("status cannot be changed through edit")
	}

	if len(set) == 0 {
		return current, nil
	}

	res := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": current.Status},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var post Post
	if err := res.Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, conflictf("post %s changed state during edit", id.Hex())
		}
		return nil, err
	}
	return &post, nil
}

// Remove marks a post removed; idempotent, never a hard delete.
func (s *PostsStore) Remove(ctx context.Context, id bson.ObjectID) (*Post, error) {
	res := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": PostRemoved}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var post Post
	if err := res.Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFoundf("post %s", id.Hex())
		}
		return nil, err
	}
	return &post, nil
}

// AddPossibleSeller records a seller's interest in fulfilling a post.
// $addToSet makes concurrent adds a server-side set union, so two
// sellers expressing interest at the same moment both land in the
// candidate set. Adding the same seller twice is a no-op.
func (s *PostsStore) AddPossibleSeller(ctx context.Context, id bson.ObjectID, sellerID string) (*Post, error) {
	if sellerID == "" {
		return nil, validationf("seller_id is required")
	}

	// buyer_id != sellerID keeps a buyer from becoming a candidate on
	// their own post; the guard sits in the filter so the document is
	// never touched in that case.
	statuses := append(bson.A{PostMatched}, acceptingStatuses...)
	res := s.coll.FindOneAndUpdate(ctx,
		bson.M{
			"_id":      id,
			"status":   bson.M{"$in": statuses},
			"buyer_id": bson.M{"$ne": sellerID},
		},
		bson.M{"$addToSet": bson.M{"possible_sellers": sellerID}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var post Post
	err := res.Decode(&post)
	if err == nil {
		return &post, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	current, err := s.GetByID(ctx, id)
	if err != nil || current.Status == PostRemoved {
		return nil, notFoundf("post %s", id.Hex())
	}
	if current.BuyerID == sellerID {
		return nil, validationf("buyer cannot be a candidate on their own post")
	}
	return nil, invalidStatef("post %s is %s and no longer accepts candidates", id.Hex(), current.Status)
}

// Match records the buyer's acceptance of one candidate: open/reposted
// becomes matched and the seller id is set. Only the buyer may match and
// the seller must already be in the candidate set.
func (s *PostsStore) Match(ctx context.Context, id bson.ObjectID, buyerID, sellerID string) (*Post, error) {
	if buyerID == "" || sellerID == "" {
		return nil, validationf("buyer_id and seller_id are required")
	}

	res := s.coll.FindOneAndUpdate(ctx,
		bson.M{
			"_id":              id,
			"status":           bson.M{"$in": acceptingStatuses},
			"buyer_id":         buyerID,
			"possible_sellers": sellerID,
		},
		bson.M{"$set": bson.M{"status": PostMatched, "seller_id": sellerID}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var post Post
	err := res.Decode(&post)
	if err == nil {
		return &post, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case current.Status == PostMatched && current.SellerID == sellerID:
		return current, nil // retry of a match that already won
	case current.BuyerID != buyerID:
		return nil, invalidStatef("only the buyer may accept a candidate on post %s", id.Hex())
	case !contains(current.PossibleSellers, sellerID):
		return nil, invalidStatef("seller %s is not a candidate on post %s", sellerID, id.Hex())
	default:
		return nil, invalidStatef("post %s is %s and cannot be matched", id.Hex(), current.Status)
	}
}

// Retrieve finishes the transaction: the post becomes retrieved and the
// winning seller is recorded. The seller must be in the candidate set,
// and a post already matched to a different seller cannot be taken over.
// This is the single racing operation of the lifecycle; the conditional
// update guarantees at most one of N concurrent callers wins, and a
// retry by the winner returns the same result.
func (s *PostsStore) Retrieve(ctx context.Context, id bson.ObjectID, sellerID string) (*Post, error) {
	if sellerID == "" {
		return nil, validationf("seller_id is required")
	}

	filter := bson.M{
		"_id":              id,
		"possible_sellers": sellerID,
		"$or": bson.A{
			bson.M{"status": bson.M{"$in": acceptingStatuses}},
			bson.M{"status": PostMatched, "seller_id": sellerID},
		},
	}
	res := s.coll.FindOneAndUpdate(ctx, filter,
		bson.M{"$set": bson.M{"status": PostRetrieved, "seller_id": sellerID}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var post Post
	err := res.Decode(&post)
	if err == nil {
		return &post, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case current.Status == PostRetrieved && current.SellerID == sellerID:
		return current, nil // idempotent for the seller who won
	case current.Status == PostRemoved:
		return nil, notFoundf("post %s", id.Hex())
	case !contains(current.PossibleSellers, sellerID):
		return nil, invalidStatef("seller %s is not a candidate on post %s", sellerID, id.Hex())
	default:
		return nil, invalidStatef("post %s is %s and cannot be retrieved by %s", id.Hex(), current.Status, sellerID)
	}
}

// Repost reopens a matched post: the accepted seller and the whole
// candidate set are cleared and the post takes candidates again. Only
// the buyer may repost, and only from matched. Favorites other users
// hold on this post are left alone; they are weak references resolved
// at read time.
func (s *PostsStore) Repost(ctx context.Context, id bson.ObjectID, requesterID string) (*Post, error) {
	if requesterID == "" {
		return nil, validationf("requester id is required")
	}

	res := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": PostMatched, "buyer_id": requesterID},
		bson.M{
			"$set":   bson.M{"status": PostReposted, "possible_sellers": []string{}},
			"$unset": bson.M{"seller_id": ""},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var post Post
	err := res.Decode(&post)
	if err == nil {
		return &post, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.BuyerID != requesterID {
		return nil, invalidStatef("only the buyer may repost post %s", id.Hex())
	}
	return nil, invalidStatef("post %s is %s and cannot be reposted", id.Hex(), current.Status)
}

// All returns every post, removed ones included; callers filter.
func (s *PostsStore) All(ctx context.Context) ([]*Post, error) {
	return s.find(ctx, bson.M{})
}

// GetByID finds a post by id.
func (s *PostsStore) GetByID(ctx context.Context, id bson.ObjectID) (*Post, error) {
	var post Post
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFoundf("post %s", id.Hex())
		}
		return nil, err
	}
	return &post, nil
}

// GetByIDs bulk-fetches posts; unknown ids are absent from the result.
func (s *PostsStore) GetByIDs(ctx context.Context, ids []bson.ObjectID) ([]*Post, error) {
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// GetByBuyer returns the posts a buyer opened.
func (s *PostsStore) GetByBuyer(ctx context.Context, buyerID string) ([]*Post, error) {
	return s.find(ctx, bson.M{"buyer_id": buyerID})
}

// GetBySeller returns the posts a seller fulfilled or was accepted on.
func (s *PostsStore) GetBySeller(ctx context.Context, sellerID string) ([]*Post, error) {
	return s.find(ctx, bson.M{"seller_id": sellerID})
}

// GetByCategory returns the posts in a category.
func (s *PostsStore) GetByCategory(ctx context.Context, category string) ([]*Post, error) {
	return s.find(ctx, bson.M{"category": category})
}

// GetByPriceRange returns posts whose price ceiling lies in the
// inclusive range. Callers omitting the lower bound pass 0.
func (s *PostsStore) GetByPriceRange(ctx context.Context, low, high float64) ([]*Post, error) {
	if low < 0 || high < low {
		return nil, validationf("invalid price range [%v, %v]", low, high)
	}
	return s.find(ctx, bson.M{"price": bson.M{"$gte": low, "$lte": high}})
}

// Search does a case-insensitive substring match over item and
// description.
func (s *PostsStore) Search(ctx context.Context, term string) ([]*Post, error) {
	term = normalize.Term(term)
	if term == "" {
		return nil, validationf("search term is required")
	}
	pattern := bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}
	return s.find(ctx, bson.M{"$or": bson.A{
		bson.M{"item": pattern},
		bson.M{"description": pattern},
	}})
}

func (s *PostsStore) find(ctx context.Context, filter bson.M) ([]*Post, error) {
	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []*Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
