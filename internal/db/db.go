// Package db manages MongoDB connections and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client wraps mongo.Client and exposes the marketplace collections.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB, verifies the connection with a ping and
// returns a Client bound to the named database.
func New(ctx context.Context, mongoURI, dbName string) (*Client, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// ProductsCollection returns the products collection.
func (c *Client) ProductsCollection() *mongo.Collection {
	return c.db.Collection("products")
}

// PostsCollection returns the posts collection.
func (c *Client) PostsCollection() *mongo.Collection {
	return c.db.Collection("posts")
}

// ChatsCollection returns the chats collection.
func (c *Client) ChatsCollection() *mongo.Collection {
	return c.db.Collection("chats")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the stores rely on.
//
// users.email and chats.pair_key are unique: the first backs the
// one-account-per-email rule, the second makes a participant pair an
// order-independent identity (the key is the sorted pair joined into
// one string, so either argument order hits the same index entry).
func (c *Client) CreateIndexes(ctx context.Context) error {
	usersIndex := mongo.IndexModel{
		Keys:    map[string]int{"email": 1},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.UsersCollection().Indexes().CreateOne(ctx, usersIndex); err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	chatsIndex := mongo.IndexModel{
		Keys:    map[string]int{"pair_key": 1},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.ChatsCollection().Indexes().CreateOne(ctx, chatsIndex); err != nil {
		return fmt.Errorf("failed to create chats index: %w", err)
	}

	// Query-path indexes for the catalog lookups (seller, buyer,
	// category, price range). Status rides along for the store-side
	// conditional updates.
	productIndexes := []mongo.IndexModel{
		{Keys: map[string]int{"seller_id": 1}},
		{Keys: map[string]int{"buyer_id": 1}},
		{Keys: map[string]int{"category": 1, "status": 1}},
		{Keys: map[string]int{"price": 1}},
	}
	if _, err := c.ProductsCollection().Indexes().CreateMany(ctx, productIndexes); err != nil {
		return fmt.Errorf("failed to create product indexes: %w", err)
	}

	postIndexes := []mongo.IndexModel{
		{Keys: map[string]int{"buyer_id": 1}},
		{Keys: map[string]int{"seller_id": 1}},
		{Keys: map[string]int{"category": 1, "status": 1}},
	}
	if _, err := c.PostsCollection().Indexes().CreateMany(ctx, postIndexes); err != nil {
		return fmt.Errorf("failed to create post indexes: %w", err)
	}

	return nil
}
