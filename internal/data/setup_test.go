package data

import (
	"context"
	"os"
	"testing"

	"github.com/kexinw/sit-marketplace-api/internal/db"
)

// setupDB connects to the test database and drops the marketplace
// collections so each test starts clean. Tests calling it are skipped
// unless MONGODB_URI is set externally.
func setupDB(t *testing.T) *db.Client {
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
	return c
}
