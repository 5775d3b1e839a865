package testutil

import (
	"context"
	"io"
	"strings"
	"sync"

	"rembes-go/internal/rembes"
	"rembes-go/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing. Objects are
// stamped with clock's time.
func NewTestVault(clock rembes.Clock) *vault.MemoryVault {
	return vault.NewMemoryVaultWithClock("test-vault", clock)
}

// FlakyVault wraps a Vault and fails selected operations on demand.
// Operation names are "list", "put", "get" and "delete".
type FlakyVault struct {
	rembes.Vault

	mu       sync.Mutex
	failures map[string]error
	calls    []string
}

// NewFlakyVault wraps inner.
func NewFlakyVault(inner rembes.Vault) *FlakyVault {
	return &FlakyVault{Vault: inner, failures: make(map[string]error)}
}

// FailOn makes every subsequent call of op return err. A nil err clears it.
func (f *FlakyVault) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// Calls returns the operations performed so far, as "op path".
func (f *FlakyVault) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CountCalls returns how many times op was called.
func (f *FlakyVault) CountCalls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, op+" ") {
			n++
		}
	}
	return n
}

func (f *FlakyVault) record(op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op+" "+path)
	return f.failures[op]
}

func (f *FlakyVault) List(ctx context.Context, prefix string) ([]rembes.ObjectInfo, error) {
	if err := f.record("list", prefix); err != nil {
		return nil, err
	}
	return f.Vault.List(ctx, prefix)
}

func (f *FlakyVault) Put(ctx context.Context, path string, r io.Reader, size int64) error {
	if err := f.record("put", path); err != nil {
		io.Copy(io.Discard, r)
		return err
	}
	return f.Vault.Put(ctx, path, r, size)
}

func (f *FlakyVault) Get(ctx context.Context, path string, w io.Writer) error {
	if err := f.record("get", path); err != nil {
		return err
	}
	return f.Vault.Get(ctx, path, w)
}

func (f *FlakyVault) Delete(ctx context.Context, path string) (bool, error) {
	if err := f.record("delete", path); err != nil {
		return false, err
	}
	return f.Vault.Delete(ctx, path)
}

var _ rembes.Vault = (*FlakyVault)(nil)
