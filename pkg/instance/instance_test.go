package instance

import "testing"

func TestGetIDPrefersExplicitID(t *testing.T) {
	t.Setenv("ALLOCATIONS_INSTANCE_ID", "api-3")
	t.Setenv("DYNO", "web.1")
	if got := GetID(); got != "api-3" {
		t.Fatalf("expected explicit id, got %q", got)
	}
}

func TestGetIDFallsBackToDyno(t *testing.T) {
	t.Setenv("ALLOCATIONS_INSTANCE_ID", "")
	t.Setenv("DYNO", "web.1")
	if got := GetID(); got != "web.1" {
		t.Fatalf("expected dyno id, got %q", got)
	}
}
