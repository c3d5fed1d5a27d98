package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileCacheRoundTrip(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() error: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	if _, hit, err := c.Get(ctx, "missing"); err != nil || hit {
		t.Errorf("Get(missing) = hit=%v err=%v, want miss", hit, err)
	}

	if err := c.Set(ctx, "key1", []byte("payload"), 0); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	data, hit, err := c.Get(ctx, "key1")
	if err != nil || !hit {
		t.Fatalf("Get() = hit=%v err=%v, want hit", hit, err)
	}
	if string(data) != "payload" {
		t.Errorf("Get() = %q, want payload", data)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() error: %v", err)
	}
	ctx := context.Background()

	if err := c.Set(ctx, "ephemeral", []byte("x"), time.Nanosecond); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, hit, err := c.Get(ctx, "ephemeral"); err != nil || hit {
		t.Errorf("Get(expired) = hit=%v err=%v, want miss", hit, err)
	}
}

func TestFileCacheDelete(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() error: %v", err)
	}
	ctx := context.Background()

	if err := c.Set(ctx, "key", []byte("x"), 0); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "key"); hit {
		t.Error("Get() hit after Delete()")
	}
	// Deleting an absent key is not an error.
	if err := c.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("Delete(absent) error: %v", err)
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatalf("NewFileCache() error: %v", err)
	}
	ctx := context.Background()

	if err := c.Set(ctx, "key", []byte("x"), 0); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	// Overwrite the entry file with junk; the next Get must miss, not fail.
	fc := c.(*FileCache)
	path := filepath.Join(fc.Dir(), Hash([]byte("key"))[:2], Hash([]byte("key"))[2:]+".json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatalf("corrupt entry: %v", err)
	}
	if _, hit, err := c.Get(ctx, "key"); err != nil || hit {
		t.Errorf("Get(corrupt) = hit=%v err=%v, want miss", hit, err)
	}
}

func TestNullCache(t *testing.T) {
	c := NewNullCache()
	ctx := context.Background()

	if err := c.Set(ctx, "key", []byte("x"), 0); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if _, hit, err := c.Get(ctx, "key"); err != nil || hit {
		t.Errorf("Get() = hit=%v err=%v, want permanent miss", hit, err)
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete() error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestHashKeyDeterministic(t *testing.T) {
	a := hashKey("result", "topology", map[string]string{"x": "1", "y": "2"})
	b := hashKey("result", "topology", map[string]string{"y": "2", "x": "1"})
	if a != b {
		t.Errorf("hashKey differs for equal inputs: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "result:") {
		t.Errorf("hashKey = %q, want result: prefix", a)
	}
	if len(a) != len("result:")+64 {
		t.Errorf("hashKey length = %d, want full sha256 hex", len(a))
	}
}

func TestResultKey(t *testing.T) {
	tipsA := map[string]string{"EPI_1": "JFK", "EPI_2": "LHR"}
	tipsB := map[string]string{"EPI_2": "LHR", "EPI_1": "JFK"}

	base := ResultKey("(a,b);", tipsA, []byte("matrix"), ResultKeyOpts{})
	if got := ResultKey("(a,b);", tipsB, []byte("matrix"), ResultKeyOpts{}); got != base {
		t.Error("ResultKey depends on tip map iteration order")
	}

	variants := []string{
		ResultKey("(a,c);", tipsA, []byte("matrix"), ResultKeyOpts{}),
		ResultKey("(a,b);", map[string]string{"EPI_1": "JFK"}, []byte("matrix"), ResultKeyOpts{}),
		ResultKey("(a,b);", tipsA, []byte("other"), ResultKeyOpts{}),
		ResultKey("(a,b);", tipsA, []byte("matrix"), ResultKeyOpts{ExpandStates: true}),
		ResultKey("(a,b);", tipsA, []byte("matrix"), ResultKeyOpts{Delimiter: ";"}),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d produced the same key as the base inputs", i)
		}
	}
}
