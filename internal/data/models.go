package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Product statuses. Transitions between them go through the lifecycle
// methods on ProductsStore; edits may never move status directly.
const (
	ProductAvailable = "available"
	ProductReserved  = "reserved"
	ProductSold      = "sold"
	ProductRemoved   = "removed"
)

// Post statuses. "reposted" behaves exactly like "open" (accepting
// candidates again after a failed match); it is kept as a distinct
// stored value only so history shows the post was reopened.
const (
	PostOpen      = "open"
	PostMatched   = "matched"
	PostRetrieved = "retrieved"
	PostReposted  = "reposted"
	PostRemoved   = "removed"
)

// Product maps to the products collection: a seller's listing.
type Product struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name        string        `bson:"name" json:"name"`
	Price       float64       `bson:"price" json:"price"`
	Date        time.Time     `bson:"date" json:"date"`
	Description string        `bson:"description" json:"description"`
	Condition   string        `bson:"condition" json:"condition"`
	SellerID    string        `bson:"seller_id" json:"seller_id"`
	BuyerID     string        `bson:"buyer_id,omitempty" json:"buyer_id,omitempty"`
	Image       string        `bson:"image" json:"image"`
	Category    string        `bson:"category" json:"category"`
	Status      string        `bson:"status" json:"status"`
}

// Post maps to the posts collection: a buyer's open request for an item.
// PossibleSellers is the candidate set; it has set semantics even though
// it is stored as an array (all writes go through $addToSet).
type Post struct {
	ID              bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	BuyerID         string        `bson:"buyer_id" json:"buyer_id"`
	SellerID        string        `bson:"seller_id,omitempty" json:"seller_id,omitempty"`
	Item            string        `bson:"item" json:"item"`
	Category        string        `bson:"category" json:"category"`
	Price           float64       `bson:"price" json:"price"`
	Condition       string        `bson:"condition" json:"condition"`
	Date            time.Time     `bson:"date" json:"date"`
	Description     string        `bson:"description" json:"description"`
	Status          string        `bson:"status" json:"status"`
	PossibleSellers []string      `bson:"possible_sellers" json:"possible_sellers"`
}

// Comment is a rating entry embedded in a user document. CommentID links
// back to the post or product whose completed transaction produced the
// rating; it is unique within one user's comments.
type Comment struct {
	ID        bson.ObjectID `bson:"_id" json:"_id"`
	Rating    int           `bson:"rating" json:"rating"`
	CommentID string        `bson:"comment_id" json:"comment_id"`
	Comment   string        `bson:"comment" json:"comment"`
}

// User maps to the users collection. Favorite holds bare post/product ids
// (weak references: entries may outlive the item they point at). Version
// is the compare-and-swap token for comment writes; favorite writes are
// single atomic array updates and do not touch it.
type User struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Email     string        `bson:"email" json:"email"`
	Password  string        `bson:"password" json:"-"`
	Firstname string        `bson:"firstname" json:"firstname"`
	Lastname  string        `bson:"lastname" json:"lastname"`
	Favorite  []string      `bson:"favorite" json:"favorite"`
	Comments  []Comment     `bson:"comments" json:"comments"`
	Rating    float64       `bson:"rating" json:"rating"`
	Version   int64         `bson:"version" json:"-"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updated_at"`
}

// Message is a single chat message embedded in a chat document.
type Message struct {
	Sender  string    `bson:"sender" json:"sender"`
	Time    time.Time `bson:"time" json:"time"`
	Message string    `bson:"message" json:"message"`
}

// Chat maps to the chats collection. Participants always holds exactly
// two distinct user ids in sorted order, so a pair of users identifies
// the same chat regardless of argument order. PairKey is the sorted pair
// joined into one string; the unique index lives on it because a unique
// index on the array itself would be multikey and forbid a user from
// appearing in more than one chat.
type Chat struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	PairKey      string        `bson:"pair_key" json:"-"`
	Participants []string      `bson:"participants" json:"participants"`
	Messages     []Message     `bson:"messages" json:"messages"`
}
