package cache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestPutGet(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	key := KeyOf([]byte("procs: []"), []byte("x86_64"))
	if _, ok, err := c.Get(key); ok || err != nil {
		t.Fatalf("Get before Put = %v, %v", ok, err)
	}
	if err := c.Put(key, &Entry{Source: "a.yaml", Triple: "x86_64-linux-gnu", Output: "; module", Funcs: 3}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	e, ok, err := c.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if e.Output != "; module" || e.Funcs != 3 || e.Created == 0 {
		t.Fatalf("entry = %+v", e)
	}
	leftovers, _ := filepath.Glob(filepath.Join(c.Dir(), "units", "tmp-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}

	if err := c.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	if _, ok, _ := c.Get(key); ok {
		t.Fatal("entry survived DropAll")
	}
}

func TestKeyOfSeparatesParts(t *testing.T) {
	if KeyOf([]byte("ab"), []byte("c")) == KeyOf([]byte("a"), []byte("bc")) {
		t.Fatal("keys of different splits collide")
	}
	if KeyOf([]byte("x")) != KeyOf([]byte("x")) {
		t.Fatal("KeyOf is not deterministic")
	}
}

func TestCorruptEntry(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := KeyOf([]byte("bad"))
	if err := os.MkdirAll(filepath.Join(c.Dir(), "units"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.pathFor(key), []byte{0xc1}, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.Get(key); err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestConcurrentPut(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := KeyOf([]byte{byte(i)})
			if err := c.Put(key, &Entry{Funcs: i}); err != nil {
				t.Errorf("Put %d: %v", i, err)
			}
		}()
	}
	wg.Wait()
	for i := range 8 {
		e, ok, err := c.Get(KeyOf([]byte{byte(i)}))
		if err != nil || !ok || e.Funcs != i {
			t.Errorf("entry %d = %+v, %v, %v", i, e, ok, err)
		}
	}
}
