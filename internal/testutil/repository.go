package testutil

import (
	"time"

	"rembes-go/internal/rembes"
)

// Fixture bundles a Repository with the fakes behind it.
type Fixture struct {
	Clock   *StubClock
	Vault   *FlakyVault
	Staging rembes.StagingArea
	Repo    *rembes.Repository
}

// NewFixture builds a Repository over an in-memory vault and staging area,
// with the clock at now and keys written in UTC. The vault stamps objects
// with the same clock, so advance it between creates to control list order.
func NewFixture(now time.Time) *Fixture {
	clock := NewStubClock(now)
	v := NewFlakyVault(NewTestVault(clock))
	sa := NewTestStagingArea()
	repo := rembes.NewRepository(v, sa, nil, rembes.NewCodec(time.UTC), rembes.NewNopLogger(), clock)
	return &Fixture{Clock: clock, Vault: v, Staging: sa, Repo: repo}
}
