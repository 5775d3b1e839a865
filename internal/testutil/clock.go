package testutil

import (
	"strconv"
	"sync"
	"time"

	"rembes-go/internal/rembes"
)

// StubClock is a settable rembes.Clock shared by a repository and the vault
// under it, so object CreatedAt stamps follow the record keys. Keys carry
// whole seconds: advance the clock between creates that must stay distinct.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

var _ rembes.Clock = (*StubClock)(nil)

func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps to t, typically across a period boundary.
func (c *StubClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Period is the reimbursement period the clock is in.
func (c *StubClock) Period() rembes.Period {
	return rembes.PeriodOf(c.Now())
}

// StubIDGenerator names staged blobs "staged-1", "staged-2" and so on.
type StubIDGenerator struct {
	mu   sync.Mutex
	next int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return "staged-" + strconv.Itoa(g.next)
}
