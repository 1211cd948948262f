package bloom

import (
	"sync"
	"testing"
)

func TestFactory_New_Basic(t *testing.T) {
	bf := NewFactory().New(128, 0.01)
	if bf == nil {
		t.Fatalf("expected non-nil bloom filter")
	}

	key := []byte("doubleclick.net")
	if bf.MightContain(key) {
		t.Fatalf("unexpected positive before add")
	}
	bf.Add(key)
	if !bf.MightContain(key) {
		t.Fatalf("expected maybe after add")
	}
}

func TestFactory_New_Defaults(t *testing.T) {
	bf := NewFactory().New(0, 0)
	key := []byte("default-case.test")
	bf.Add(key)
	if !bf.MightContain(key) {
		t.Fatalf("expected maybe after add with default-sized bloom")
	}
}

func TestFilter_NoFalseNegatives(t *testing.T) {
	bf := NewFactory().New(1000, 0.01)
	keys := make([][]byte, 0, 1000)
	for i := 0; i < 1000; i++ {
		keys = append(keys, []byte{byte(i >> 8), byte(i), 'x'})
	}
	for _, k := range keys {
		bf.Add(k)
	}
	for _, k := range keys {
		if !bf.MightContain(k) {
			t.Fatalf("false negative for %v", k)
		}
	}
}

func TestFilter_ConcurrentReadsDuringWrites(t *testing.T) {
	f := NewFactory().New(256, 0.01)

	var wg sync.WaitGroup
	done := make(chan struct{})
	keys := [][]byte{[]byte("a"), []byte("b"), []byte("c")}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10_000; i++ {
			f.Add(keys[i%3])
		}
		close(done)
	}()

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					_ = f.MightContain([]byte("lookup.example"))
				}
			}
		}()
	}

	wg.Wait()
}
