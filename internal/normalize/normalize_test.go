package normalize

import "testing"

func TestEmail(t *testing.T) {
	if got := Email("  User@Example.COM "); got != "user@example.com" {
		t.Fatalf("Email normalization failed: %s", got)
	}
}

func TestTerm(t *testing.T) {
	if got := Term("  lamp "); got != "lamp" {
		t.Fatalf("Term normalization failed: %q", got)
	}
	if got := Term("   "); got != "" {
		t.Fatalf("expected empty term, got %q", got)
	}
}
