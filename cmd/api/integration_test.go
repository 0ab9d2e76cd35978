package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/kexinw/sit-marketplace-api/internal/auth"
	"github.com/kexinw/sit-marketplace-api/internal/data"
	"github.com/kexinw/sit-marketplace-api/internal/db"
	"github.com/kexinw/sit-marketplace-api/internal/events"
	"github.com/kexinw/sit-marketplace-api/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// recordingPublisher captures interest events so the test can assert
// the chat-eligible signal went out.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Interest
}

func (r *recordingPublisher) PublishInterest(ctx context.Context, ev events.Interest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) snapshot() []events.Interest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Interest{}, r.events...)
}

func setupApp(t *testing.T) (*fiber.App, *recordingPublisher) {
	t.Helper()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := db.New(ctx, uri, "marketplace_test")
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	_ = c.UsersCollection().Drop(ctx)
	_ = c.ProductsCollection().Drop(ctx)
	_ = c.PostsCollection().Drop(ctx)
	_ = c.ChatsCollection().Drop(ctx)
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}

	pub := &recordingPublisher{}
	srv := newServer(
		data.NewUsersStore(c.UsersCollection()),
		data.NewProductsStore(c.ProductsCollection()),
		data.NewPostsStore(c.PostsCollection()),
		data.NewChatsStore(c.ChatsCollection()),
		auth.NewJWTManager("integration-secret", time.Hour),
		pub,
	)

	limiter := middleware.NewLimiterStore(1000, 1000, time.Minute)
	t.Cleanup(limiter.Stop)

	app := fiber.New()
	srv.routes(app, limiter)
	return app, pub
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, 10000)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	decoded := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp.StatusCode, decoded
}

func registerUser(t *testing.T, app *fiber.App, email string) (id, token string) {
	t.Helper()
	code, body := doJSON(t, app, http.MethodPost, "/auth/register", "", map[string]any{
		"email":     email,
		"password":  "password-123",
		"firstname": "Test",
		"lastname":  "User",
	})
	if code != http.StatusCreated {
		t.Fatalf("register %s: status %d (%v)", email, code, body)
	}
	user := body["user"].(map[string]any)
	return user["_id"].(string), body["token"].(string)
}

func TestMarketplaceFlow(t *testing.T) {
	app, pub := setupApp(t)

	buyerID, buyerToken := registerUser(t, app, "buyer@example.com")
	seller1ID, seller1Token := registerUser(t, app, "seller1@example.com")
	_, seller2Token := registerUser(t, app, "seller2@example.com")

	// buyer opens a request
	code, post := doJSON(t, app, http.MethodPost, "/api/posts", buyerToken, map[string]any{
		"item":        "desk lamp",
		"category":    "furniture",
		"price":       20,
		"condition":   "any",
		"description": "something for a dorm desk",
	})
	if code != http.StatusCreated {
		t.Fatalf("create post: status %d (%v)", code, post)
	}
	postID := post["_id"].(string)

	// both sellers express interest
	for _, token := range []string{seller1Token, seller2Token} {
		if code, body := doJSON(t, app, http.MethodPost, "/api/posts/"+postID+"/sellers", token, nil); code != http.StatusOK {
			t.Fatalf("add possible seller: status %d (%v)", code, body)
		}
	}

	// the interest events for the chat collaborator go out asynchronously
	deadline := time.Now().Add(2 * time.Second)
	for {
		evs := pub.snapshot()
		if len(evs) == 2 {
			if evs[0].PostID != postID || evs[0].BuyerID != buyerID {
				t.Fatalf("unexpected interest event: %+v", evs[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 interest events, got %d", len(evs))
		}
		time.Sleep(10 * time.Millisecond)
	}

	// seller1 retrieves; seller2 is turned away
	code, body := doJSON(t, app, http.MethodPost, "/api/posts/"+postID+"/retrieve", seller1Token, nil)
	if code != http.StatusOK || body["status"] != data.PostRetrieved || body["seller_id"] != seller1ID {
		t.Fatalf("retrieve: status %d (%v)", code, body)
	}
	if code, _ := doJSON(t, app, http.MethodPost, "/api/posts/"+postID+"/retrieve", seller2Token, nil); code != http.StatusConflict {
		t.Fatalf("second retrieve: status %d, want %d", code, http.StatusConflict)
	}

	// buyer rates the seller against the completed transaction
	code, rated := doJSON(t, app, http.MethodPost, "/api/users/"+seller1ID+"/comments", buyerToken, map[string]any{
		"transaction_id": postID,
		"rating":         5,
		"comment":        "quick handoff",
	})
	if code != http.StatusCreated || rated["rating"].(float64) != 5 {
		t.Fatalf("add comment: status %d (%v)", code, rated)
	}

	// out-of-range ratings are rejected
	if code, _ := doJSON(t, app, http.MethodPost, "/api/users/"+seller1ID+"/comments", buyerToken, map[string]any{
		"transaction_id": "other-tx",
		"rating":         6,
	}); code != http.StatusBadRequest {
		t.Fatalf("rating 6: status %d, want 400", code)
	}

	// seller2 keeps the post bookmarked; round trip leaves no trace
	if code, _ := doJSON(t, app, http.MethodPost, "/api/favorites", seller2Token, map[string]any{"item_id": postID}); code != http.StatusOK {
		t.Fatalf("add favorite: status %d", code)
	}
	code, favs := doJSON(t, app, http.MethodDelete, "/api/favorites/"+postID, seller2Token, nil)
	if code != http.StatusOK {
		t.Fatalf("remove favorite: status %d", code)
	}
	if list, ok := favs["favorite"].([]any); !ok || len(list) != 0 {
		t.Fatalf("favorites after round trip: %v", favs)
	}

	// the pair can open their chat in either direction
	code, chat := doJSON(t, app, http.MethodPost, "/api/chats", seller1Token, map[string]any{"with": buyerID})
	if code != http.StatusCreated {
		t.Fatalf("create chat: status %d (%v)", code, chat)
	}
	code, found := doJSON(t, app, http.MethodGet, "/api/chats?with="+seller1ID, buyerToken, nil)
	if code != http.StatusOK || found["_id"] != chat["_id"] {
		t.Fatalf("chat lookup: status %d (%v)", code, found)
	}
}

func TestRepostFlow(t *testing.T) {
	app, _ := setupApp(t)

	_, buyerToken := registerUser(t, app, "b2@example.com")
	sellerID, sellerToken := registerUser(t, app, "s2@example.com")

	code, post := doJSON(t, app, http.MethodPost, "/api/posts", buyerToken, map[string]any{
		"item":        "bike",
		"category":    "sports",
		"price":       100,
		"condition":   "used",
		"description": "city bike wanted",
	})
	if code != http.StatusCreated {
		t.Fatalf("create post: status %d", code)
	}
	postID := post["_id"].(string)

	if code, _ := doJSON(t, app, http.MethodPost, "/api/posts/"+postID+"/sellers", sellerToken, nil); code != http.StatusOK {
		t.Fatalf("add possible seller: status %d", code)
	}

	// buyer accepts, then changes their mind
	code, matched := doJSON(t, app, http.MethodPost, "/api/posts/"+postID+"/match", buyerToken, map[string]any{"seller_id": sellerID})
	if code != http.StatusOK || matched["status"] != data.PostMatched {
		t.Fatalf("match: status %d (%v)", code, matched)
	}

	// only the buyer may repost
	if code, _ := doJSON(t, app, http.MethodPost, "/api/posts/"+postID+"/repost", sellerToken, nil); code != http.StatusConflict {
		t.Fatalf("seller repost: status %d, want 409", code)
	}

	code, reposted := doJSON(t, app, http.MethodPost, "/api/posts/"+postID+"/repost", buyerToken, nil)
	if code != http.StatusOK || reposted["status"] != data.PostReposted {
		t.Fatalf("repost: status %d (%v)", code, reposted)
	}
	if sellers, ok := reposted["possible_sellers"].([]any); !ok || len(sellers) != 0 {
		t.Fatalf("candidates not cleared: %v", reposted)
	}
}
