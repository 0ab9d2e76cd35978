package events

import (
	"context"
	"encoding/json"
	"testing"
)

func TestInterestPayloadShape(t *testing.T) {
	ev := Interest{PostID: "p1", BuyerID: "u1", SellerID: "u2"}

	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got["post_id"] != "p1" || got["buyer_id"] != "u1" || got["seller_id"] != "u2" {
		t.Fatalf("unexpected payload: %v", got)
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.PublishInterest(context.Background(), Interest{}); err != nil {
		t.Fatalf("NopPublisher returned error: %v", err)
	}
}
