package data

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ChatsStore performs chat DB operations. A chat is identified by its
// unordered participant pair; the pair is stored sorted so either
// argument order resolves to the same document, and a unique index on
// the array keeps concurrent creates from producing two chats for one
// pair.
type ChatsStore struct {
	coll *mongo.Collection
}

// NewChatsStore returns a ChatsStore using the provided collection.
func NewChatsStore(coll *mongo.Collection) *ChatsStore {
	return &ChatsStore{coll: coll}
}

// canonicalPair validates and sorts a participant pair. The returned key
// is the sorted pair joined with ":"; it is what the unique index guards.
func canonicalPair(a, b string) (pair []string, key string, err error) {
	if a == "" || b == "" {
		return nil, "", validationf("both participant ids are required")
	}
	if a == b {
		return nil, "", validationf("a chat needs two distinct participants")
	}
	pair = []string{a, b}
	sort.Strings(pair)
	return pair, strings.Join(pair, ":"), nil
}

// Create returns the chat for a participant pair, creating it if it
// does not exist yet. Losing a create race to the unique index falls
// back to reading the winner; either way the caller gets the one chat
// for the pair.
func (s *ChatsStore) Create(ctx context.Context, a, b string) (*Chat, error) {
	pair, key, err := canonicalPair(a, b)
	if err != nil {
		return nil, err
	}

	var existing Chat
	err = s.coll.FindOne(ctx, bson.M{"pair_key": key}).Decode(&existing)
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	chat := &Chat{PairKey: key, Participants: pair, Messages: []Message{}}
	result, err := s.coll.InsertOne(ctx, chat)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return s.GetByParticipants(ctx, a, b)
		}
		return nil, err
	}
	chat.ID = result.InsertedID.(bson.ObjectID)
	return chat, nil
}

// GetByID finds a chat by id.
func (s *ChatsStore) GetByID(ctx context.Context, id bson.ObjectID) (*Chat, error) {
	var chat Chat
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&chat)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFoundf("chat %s", id.Hex())
		}
		return nil, err
	}
	return &chat, nil
}

// GetByParticipants finds the chat for an unordered participant pair.
func (s *ChatsStore) GetByParticipants(ctx context.Context, a, b string) (*Chat, error) {
	pair, key, err := canonicalPair(a, b)
	if err != nil {
		return nil, err
	}

	var chat Chat
	err = s.coll.FindOne(ctx, bson.M{"pair_key": key}).Decode(&chat)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFoundf("chat between %s and %s", pair[0], pair[1])
		}
		return nil, err
	}
	return &chat, nil
}

// AddMessage appends a message to a chat. The sender must be one of the
// two participants; the message list is append-only.
func (s *ChatsStore) AddMessage(ctx context.Context, chatID bson.ObjectID, sender string, at time.Time, text string) (*Chat, error) {
	if text == "" {
		return nil, validationf("message text is required")
	}
	if at.IsZero() {
		at = time.Now()
	}

	res := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": chatID, "participants": sender},
		bson.M{"$push": bson.M{"messages": Message{Sender: sender, Time: at, Message: text}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var chat Chat
	err := res.Decode(&chat)
	if err == nil {
		return &chat, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// Distinguish an unknown chat from a sender outside the pair.
	if _, err := s.GetByID(ctx, chatID); err != nil {
		return nil, err
	}
	return nil, validationf("sender %s is not a participant of chat %s", sender, chatID.Hex())
}
