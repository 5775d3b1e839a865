package vault

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"rembes-go/internal/rembes"
)

// vaultContract runs the behaviour every backend must share.
func vaultContract(t *testing.T, newVault func(t *testing.T) rembes.Vault) {
	ctx := context.Background()

	put := func(t *testing.T, v rembes.Vault, p, data string) {
		t.Helper()
		if err := v.Put(ctx, p, strings.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("Put(%q) error = %v", p, err)
		}
	}

	t.Run("put then get", func(t *testing.T) {
		v := newVault(t)
		put(t, v, "grab/2024-01/a.jpg", "receipt")

		var buf bytes.Buffer
		if err := v.Get(ctx, "grab/2024-01/a.jpg", &buf); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if buf.String() != "receipt" {
			t.Errorf("Get() = %q, want %q", buf.String(), "receipt")
		}
	})

	t.Run("put replaces", func(t *testing.T) {
		v := newVault(t)
		put(t, v, "grab/2024-01/a.jpg", "old")
		put(t, v, "grab/2024-01/a.jpg", "new")

		var buf bytes.Buffer
		if err := v.Get(ctx, "grab/2024-01/a.jpg", &buf); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if buf.String() != "new" {
			t.Errorf("Get() = %q, want %q", buf.String(), "new")
		}
	})

	t.Run("put size mismatch", func(t *testing.T) {
		v := newVault(t)
		err := v.Put(ctx, "grab/2024-01/a.jpg", strings.NewReader("short"), 100)
		if err == nil {
			t.Fatal("Put() expected size mismatch error")
		}
		infos, _ := v.List(ctx, "grab/2024-01/")
		if len(infos) != 0 {
			t.Errorf("List() = %v, want nothing stored", infos)
		}
	})

	t.Run("put rejects escaping paths", func(t *testing.T) {
		v := newVault(t)
		for _, p := range []string{"", "/abs.jpg", "grab/../x.jpg", "grab//x.jpg", "grab/"} {
			if err := v.Put(ctx, p, strings.NewReader("x"), 1); err == nil {
				t.Errorf("Put(%q) expected error", p)
			}
		}
	})

	t.Run("get missing", func(t *testing.T) {
		v := newVault(t)
		err := v.Get(ctx, "grab/2024-01/missing.jpg", &bytes.Buffer{})
		if !errors.Is(err, rembes.ErrObjectNotFound) {
			t.Errorf("Get() error = %v, want ErrObjectNotFound", err)
		}
	})

	t.Run("list direct children only", func(t *testing.T) {
		v := newVault(t)
		put(t, v, "grab/2024-01/a.jpg", "a")
		put(t, v, "grab/2024-01/b.jpg", "bb")
		put(t, v, "grab/2024-02/c.jpg", "c")
		put(t, v, "mrt/2024-01/d.jpg", "d")

		infos, err := v.List(ctx, "grab/2024-01/")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		var names []string
		for _, info := range infos {
			names = append(names, info.Name)
			if info.Name == "b.jpg" && info.Size != 2 {
				t.Errorf("b.jpg Size = %d, want 2", info.Size)
			}
		}
		sort.Strings(names)
		if strings.Join(names, ",") != "a.jpg,b.jpg" {
			t.Errorf("List() names = %v, want [a.jpg b.jpg]", names)
		}
	})

	t.Run("list empty prefix", func(t *testing.T) {
		v := newVault(t)
		infos, err := v.List(ctx, "nothing/2024-01/")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if infos == nil || len(infos) != 0 {
			t.Errorf("List() = %#v, want empty non-nil slice", infos)
		}
	})

	t.Run("delete", func(t *testing.T) {
		v := newVault(t)
		put(t, v, "grab/2024-01/a.jpg", "a")

		existed, err := v.Delete(ctx, "grab/2024-01/a.jpg")
		if err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if !existed {
			t.Error("Delete() existed = false, want true")
		}

		existed, err = v.Delete(ctx, "grab/2024-01/a.jpg")
		if err != nil {
			t.Fatalf("second Delete() error = %v", err)
		}
		if existed {
			t.Error("second Delete() existed = true, want false")
		}

		if err := v.Get(ctx, "grab/2024-01/a.jpg", &bytes.Buffer{}); !errors.Is(err, rembes.ErrObjectNotFound) {
			t.Errorf("Get() after Delete error = %v, want ErrObjectNotFound", err)
		}
	})
}

func TestMemoryVault(t *testing.T) {
	vaultContract(t, func(*testing.T) rembes.Vault { return NewMemoryVault("test") })
}

func TestFileSystemVault(t *testing.T) {
	vaultContract(t, func(t *testing.T) rembes.Vault {
		v, err := NewFileSystemVault("test", t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
		return v
	})
}
