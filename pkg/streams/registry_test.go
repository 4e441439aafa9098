package streams

import (
	"reflect"
	"sync"
	"testing"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry("b", "a")

	if !r.Has("a") || !r.Has("b") {
		t.Error("registered streams missing")
	}
	if r.Has("c") {
		t.Error("unregistered stream present")
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
	if got := r.Names(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Names = %v, want sorted", got)
	}
}

func TestRegistry_Replace(t *testing.T) {
	r := NewRegistry("old")

	r.Replace([]string{"new1", "new2"})

	if r.Has("old") {
		t.Error("old stream survived replace")
	}
	if !r.Has("new1") || !r.Has("new2") {
		t.Error("new streams missing after replace")
	}
}

func TestRegistry_ConcurrentReplace(t *testing.T) {
	r := NewRegistry("a")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Replace([]string{"a", "b"})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Has("a")
				r.Names()
			}
		}()
	}
	wg.Wait()

	if !r.Has("a") {
		t.Error("stream a lost")
	}
}
