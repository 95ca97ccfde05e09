package bot

import (
	"testing"
)

func TestRateLimiterCooldown(t *testing.T) {
	r := NewRateLimiter()

	if r.IsLimited(1, "newkey") {
		t.Error("first call should not be limited")
	}
	if !r.IsLimited(1, "newkey") {
		t.Error("immediate second call should be limited")
	}
}

func TestRateLimiterIsPerUserAndCommand(t *testing.T) {
	r := NewRateLimiter()

	r.IsLimited(1, "newkey")
	if r.IsLimited(2, "newkey") {
		t.Error("other user should not share the cooldown")
	}
	if r.IsLimited(1, "mykeys") {
		t.Error("other command should not share the cooldown")
	}
}

func TestRateLimiterDefaultLimit(t *testing.T) {
	r := NewRateLimiter()

	if r.IsLimited(1, "unlisted") {
		t.Error("first call to unlisted command should pass")
	}
	if !r.IsLimited(1, "unlisted") {
		t.Error("unlisted command should still get the default cooldown")
	}
}
