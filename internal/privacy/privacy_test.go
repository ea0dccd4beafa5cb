package privacy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrubMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		leaks string
	}{
		{"url query", "GET https://api.ebird.org/v2/data/obs/geo/recent?lat=37.8&lng=-122.2 failed", "lat=37.8"},
		{"password", "mysql password=hunter2 rejected", "hunter2"},
		{"user id", "merge failed for user_id=alice", "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ScrubMessage(tt.input)
			assert.NotContains(t, got, tt.leaks)
			assert.Contains(t, got, "[REDACTED]")
		})
	}

	assert.Equal(t, "nothing to hide", ScrubMessage("nothing to hide"))
}

func TestUserRef(t *testing.T) {
	t.Parallel()

	ref := UserRef("alice@example.com")
	assert.True(t, strings.HasPrefix(ref, "user-"))
	assert.Len(t, ref, len("user-")+2*userRefBytes)
	assert.NotContains(t, ref, "alice")
	assert.Equal(t, ref, UserRef("alice@example.com"))
	assert.NotEqual(t, ref, UserRef("bob@example.com"))
	assert.Equal(t, "anonymous", UserRef(""))
}

func BenchmarkScrubMessage(b *testing.B) {
	msg := "GET https://api.ebird.org/v2/product/checklist/view/S123?key=abc returned 503"
	for b.Loop() {
		_ = ScrubMessage(msg)
	}
}
