package data

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestMeanRating(t *testing.T) {
	if got := meanRating(nil); got != 0 {
		t.Fatalf("meanRating(nil) = %v", got)
	}

	comments := []Comment{{Rating: 5}, {Rating: 4}, {Rating: 3}}
	if got := meanRating(comments); got != 4.00 {
		t.Fatalf("meanRating(5,4,3) = %v, want 4.00", got)
	}

	// rounding to two decimal places
	comments = []Comment{{Rating: 5}, {Rating: 4}, {Rating: 4}}
	if got := meanRating(comments); got != 4.33 {
		t.Fatalf("meanRating(5,4,4) = %v, want 4.33", got)
	}
}

func TestCommentValidation(t *testing.T) {
	// bounds are checked before any DB access
	s := NewUsersStore(nil)
	ctx := context.Background()
	id := bson.NewObjectID()

	if _, err := s.AddComment(ctx, id, "tx-1", 6, "great"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for rating 6, got %v", err)
	}
	if _, err := s.AddComment(ctx, id, "tx-1", 0, "bad"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for rating 0, got %v", err)
	}
	if _, err := s.AddComment(ctx, id, "", 3, "ok"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty transaction id, got %v", err)
	}
	if _, err := s.EditComment(ctx, id, "tx-1", 9, "great"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for edit rating 9, got %v", err)
	}
}

func TestUserCreateAndGet(t *testing.T) {
	c := setupDB(t)
	s := NewUsersStore(c.UsersCollection())
	ctx := context.Background()

	u, err := s.Create(ctx, "Alice@Example.COM", "hashed-password", "Alice", "Lee")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %s", u.Email)
	}

	// duplicate email is a validation failure, mixed case included
	if _, err := s.Create(ctx, "ALICE@example.com", "h", "A", "L"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for duplicate email, got %v", err)
	}

	got, err := s.GetByEmail(ctx, "alice@example.com")
	if err != nil || got.ID != u.ID {
		t.Fatalf("GetByEmail: %+v, %v", got, err)
	}
	if _, err := s.GetByID(ctx, bson.NewObjectID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not-found for unknown id, got %v", err)
	}
}

func TestFavoritesRoundTrip(t *testing.T) {
	c := setupDB(t)
	s := NewUsersStore(c.UsersCollection())
	ctx := context.Background()

	u, err := s.Create(ctx, "bob@example.com", "h", "Bob", "Kim")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	before := append([]string{}, u.Favorite...)

	fav, err := s.AddFavorite(ctx, u.ID, "item-1")
	if err != nil || len(fav) != 1 {
		t.Fatalf("AddFavorite: %v, %v", fav, err)
	}

	// set semantics: a second add changes nothing
	fav, err = s.AddFavorite(ctx, u.ID, "item-1")
	if err != nil || len(fav) != 1 {
		t.Fatalf("repeat AddFavorite: %v, %v", fav, err)
	}

	// add then remove returns the list to its prior state
	fav, err = s.RemoveFavorite(ctx, u.ID, "item-1")
	if err != nil {
		t.Fatalf("RemoveFavorite failed: %v", err)
	}
	if !reflect.DeepEqual(fav, before) {
		t.Fatalf("favorites after round trip = %v, want %v", fav, before)
	}

	// removing an absent id is a no-op
	if _, err := s.RemoveFavorite(ctx, u.ID, "item-1"); err != nil {
		t.Fatalf("remove of absent id failed: %v", err)
	}

	if _, err := s.AddFavorite(ctx, bson.NewObjectID(), "item-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not-found for unknown user, got %v", err)
	}
}

func TestCommentsAddAndEdit(t *testing.T) {
	c := setupDB(t)
	s := NewUsersStore(c.UsersCollection())
	ctx := context.Background()

	u, err := s.Create(ctx, "carol@example.com", "h", "Carol", "Diaz")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i, tc := range []struct {
		tx     string
		rating int
	}{{"tx-1", 5}, {"tx-2", 4}, {"tx-3", 3}} {
		if u, err = s.AddComment(ctx, u.ID, tc.tx, tc.rating, "thanks"); err != nil {
			t.Fatalf("AddComment %d failed: %v", i, err)
		}
	}
	if u.Rating != 4.00 {
		t.Fatalf("aggregate rating = %v, want 4.00", u.Rating)
	}

	// one comment per transaction per user
	if _, err := s.AddComment(ctx, u.ID, "tx-1", 2, "again"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for duplicate transaction, got %v", err)
	}

	u, err = s.EditComment(ctx, u.ID, "tx-3", 5, "better than I thought")
	if err != nil {
		t.Fatalf("EditComment failed: %v", err)
	}
	if len(u.Comments) != 3 {
		t.Fatalf("edit must replace in place, got %d comments", len(u.Comments))
	}
	if u.Rating != 4.67 {
		t.Fatalf("aggregate after edit = %v, want 4.67", u.Rating)
	}

	if _, err := s.EditComment(ctx, u.ID, "tx-9", 4, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not-found editing unknown transaction, got %v", err)
	}

	got, err := s.GetComment(ctx, u.ID, "tx-3")
	if err != nil || got.Rating != 5 {
		t.Fatalf("GetComment: %+v, %v", got, err)
	}
}

func TestCommentVersionMoves(t *testing.T) {
	c := setupDB(t)
	s := NewUsersStore(c.UsersCollection())
	ctx := context.Background()

	u, err := s.Create(ctx, "dave@example.com", "h", "Dave", "Ng")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// concurrent comment writers must all land via the retry loop
	done := make(chan error, 2)
	go func() {
		_, err := s.AddComment(ctx, u.ID, "tx-a", 5, "")
		done <- err
	}()
	go func() {
		_, err := s.AddComment(ctx, u.ID, "tx-b", 3, "")
		done <- err
	}()
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent AddComment failed: %v", err)
		}
	}

	got, err := s.GetByID(ctx, u.ID)
	if err != nil || len(got.Comments) != 2 {
		t.Fatalf("comments after concurrent adds: %+v, %v", got, err)
	}
	if got.Rating != 4.00 {
		t.Fatalf("aggregate = %v, want 4.00", got.Rating)
	}
}
