package vault

import (
	"context"
	"strings"
	"testing"
	"time"

	"rembes-go/internal/rembes"
)

type tickClock struct{ t time.Time }

func (c *tickClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

var _ rembes.Clock = (*tickClock)(nil)

func TestMemoryVault_CreatedAtFromClock(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	v := NewMemoryVaultWithClock("test", &tickClock{t: start})

	for _, name := range []string{"first.jpg", "second.jpg"} {
		if err := v.Put(ctx, "grab/2024-01/"+name, strings.NewReader("x"), 1); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	infos, err := v.List(ctx, "grab/2024-01/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	got := map[string]time.Time{}
	for _, info := range infos {
		got[info.Name] = info.CreatedAt
	}
	if !got["first.jpg"].Equal(start.Add(time.Second)) {
		t.Errorf("first.jpg CreatedAt = %v, want %v", got["first.jpg"], start.Add(time.Second))
	}
	if !got["second.jpg"].Equal(start.Add(2 * time.Second)) {
		t.Errorf("second.jpg CreatedAt = %v, want %v", got["second.jpg"], start.Add(2*time.Second))
	}
	if v.Len() != 2 {
		t.Errorf("Len() = %d, want 2", v.Len())
	}
}
