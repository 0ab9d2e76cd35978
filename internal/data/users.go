package data

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/kexinw/sit-marketplace-api/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// maxWriteRetries bounds the optimistic-concurrency retry loop on
// comment writes before the conflict is surfaced to the caller.
const maxWriteRetries = 3

// Rating bounds for comments.
const (
	minRating = 1
	maxRating = 5
)

// UsersStore performs user DB operations: account creation and lookup,
// the favorite set and the comment/rating ledger. Favorite writes are
// single atomic array updates; comment writes read-modify-write under a
// version field with bounded retries.
type UsersStore struct {
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// Create inserts a new user document with an already-hashed password.
func (s *UsersStore) Create(ctx context.Context, email, hashedPassword, firstname, lastname string) (*User, error) {
	email = normalize.Email(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, validationf("a valid email is required")
	}
	if hashedPassword == "" {
		return nil, validationf("password is required")
	}
	if firstname == "" || lastname == "" {
		return nil, validationf("firstname and lastname are required")
	}

	now := time.Now()
	user := &User{
		Email:     email,
		Password:  hashedPassword,
		Firstname: firstname,
		Lastname:  lastname,
		Favorite:  []string{},
		Comments:  []Comment{},
		Rating:    0,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := s.coll.InsertOne(ctx, user)
	if err != nil {
		// Unique index on email turns a duplicate registration into
		// a duplicate-key error.
		if mongo.IsDuplicateKeyError(err) {
			return nil, validationf("email %s is already registered", email)
		}
		return nil, err
	}
	user.ID = result.InsertedID.(bson.ObjectID)
	return user, nil
}

// GetByEmail finds a user by normalized email.
func (s *UsersStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.coll.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFoundf("user %s", email)
		}
		return nil, err
	}
	return &user, nil
}

// GetByID finds a user by id.
func (s *UsersStore) GetByID(ctx context.Context, id bson.ObjectID) (*User, error) {
	var user User
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFoundf("user %s", id.Hex())
		}
		return nil, err
	}
	return &user, nil
}

// GetByIDs bulk-fetches users; unknown ids are absent from the result.
func (s *UsersStore) GetByIDs(ctx context.Context, ids []bson.ObjectID) ([]*User, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []*User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// AddFavorite inserts an item id into the user's favorite set and
// returns the updated list. $addToSet gives set semantics: adding an id
// twice leaves the list unchanged. The item is stored as a bare id and
// never validated against the catalog; favorites are weak references.
func (s *UsersStore) AddFavorite(ctx context.Context, userID bson.ObjectID, itemID string) ([]string, error) {
	if itemID == "" {
		return nil, validationf("item id is required")
	}
	return s.updateFavorite(ctx, userID, bson.M{"$addToSet": bson.M{"favorite": itemID}})
}

// RemoveFavorite removes an item id from the favorite set; removing an
// absent id is a no-op.
func (s *UsersStore) RemoveFavorite(ctx context.Context, userID bson.ObjectID, itemID string) ([]string, error) {
	if itemID == "" {
		return nil, validationf("item id is required")
	}
	return s.updateFavorite(ctx, userID, bson.M{"$pull": bson.M{"favorite": itemID}})
}

func (s *UsersStore) updateFavorite(ctx context.Context, userID bson.ObjectID, update bson.M) ([]string, error) {
	res := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var user User
	if err := res.Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFoundf("user %s", userID.Hex())
		}
		return nil, err
	}
	return user.Favorite, nil
}

// AddComment appends a rating entry to the target user and recomputes
// the aggregate rating. transactionID is the post/product that produced
// the rating; one entry per transaction per user, so a duplicate is
// rejected rather than silently shadowing the first.
func (s *UsersStore) AddComment(ctx context.Context, userID bson.ObjectID, transactionID string, rating int, text string) (*User, error) {
	if rating < minRating || rating > maxRating {
		return nil, validationf("rating must be between %d and %d", minRating, maxRating)
	}
	if transactionID == "" {
		return nil, validationf("transaction id is required")
	}

	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		user, err := s.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if _, ok := findComment(user.Comments, transactionID); ok {
			return nil, validationf("user %s already has a comment for transaction %s", userID.Hex(), transactionID)
		}

		comments := append(append([]Comment{}, user.Comments...), Comment{
			ID:        bson.NewObjectID(),
			Rating:    rating,
			CommentID: transactionID,
			Comment:   text,
		})

		updated, err := s.writeComments(ctx, user, comments)
		if err != nil {
			if errors.Is(err, ErrConflict) {
				continue // lost the version race, re-read and retry
			}
			return nil, err
		}
		return updated, nil
	}
	return nil, conflictf("comment write on user %s kept losing the version race", userID.Hex())
}

// EditComment replaces the entry matching transactionID in place and
// recomputes the aggregate rating.
func (s *UsersStore) EditComment(ctx context.Context, userID bson.ObjectID, transactionID string, rating int, text string) (*User, error) {
	if rating < minRating || rating > maxRating {
		return nil, validationf("rating must be between %d and %d", minRating, maxRating)
	}
	if transactionID == "" {
		return nil, validationf("transaction id is required")
	}

	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		user, err := s.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		idx, ok := findComment(user.Comments, transactionID)
		if !ok {
			return nil, notFoundf("user %s has no comment for transaction %s", userID.Hex(), transactionID)
		}

		comments := append([]Comment{}, user.Comments...)
		comments[idx].Rating = rating
		comments[idx].Comment = text

		updated, err := s.writeComments(ctx, user, comments)
		if err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return nil, err
		}
		return updated, nil
	}
	return nil, conflictf("comment write on user %s kept losing the version race", userID.Hex())
}

// GetComment returns the user's comment for one transaction.
func (s *UsersStore) GetComment(ctx context.Context, userID bson.ObjectID, transactionID string) (*Comment, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx, ok := findComment(user.Comments, transactionID)
	if !ok {
		return nil, notFoundf("user %s has no comment for transaction %s", userID.Hex(), transactionID)
	}
	comment := user.Comments[idx]
	return &comment, nil
}

// writeComments is the CAS write shared by add and edit: the update only
// lands if the version still matches the read; a miss on an existing
// user means the version moved and the caller should retry.
func (s *UsersStore) writeComments(ctx context.Context, user *User, comments []Comment) (*User, error) {
	rating := meanRating(comments)
	now := time.Now()

	result, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": user.ID, "version": user.Version},
		bson.M{
			"$set": bson.M{"comments": comments, "rating": rating, "updated_at": now},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, conflictf("user %s version moved", user.ID.Hex())
	}

	updated := *user
	updated.Comments = comments
	updated.Rating = rating
	updated.Version++
	updated.UpdatedAt = now
	return &updated, nil
}

func findComment(comments []Comment, transactionID string) (int, bool) {
	for i, c := range comments {
		if c.CommentID == transactionID {
			return i, true
		}
	}
	return -1, false
}

// meanRating is the arithmetic mean of all comment ratings rounded to
// two decimal places; zero when there are no comments.
func meanRating(comments []Comment) float64 {
	if len(comments) == 0 {
		return 0
	}
	sum := 0
	for _, c := range comments {
		sum += c.Rating
	}
	mean := float64(sum) / float64(len(comments))
	return math.Round(mean*100) / 100
}
