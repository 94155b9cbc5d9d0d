package ecs

import (
	"sync"
	"testing"
)

func TestStore_Basic(t *testing.T) {
	s := NewStore[int]()
	s.Set(3, 30)
	s.Set(1, 10)
	s.Set(2, 20)

	if v, ok := s.Get(1); !ok || v != 10 {
		t.Errorf("Expected 10, got %v (ok=%v)", v, ok)
	}
	if _, ok := s.Get(42); ok {
		t.Error("Expected missing entity")
	}

	entities := s.Entities()
	expected := []Entity{1, 2, 3}
	for i := range expected {
		if entities[i] != expected[i] {
			t.Fatalf("Expected sorted entities %v, got %v", expected, entities)
		}
	}

	if !s.Remove(2) || s.Remove(2) {
		t.Error("Remove must succeed once")
	}
	if s.Len() != 2 {
		t.Errorf("Expected 2 items, got %d", s.Len())
	}
}

func TestContainer_SubmitWritesOnlyDirty(t *testing.T) {
	s := NewStore[int]()
	for e := Entity(1); e <= 4; e++ {
		s.Set(e, int(e))
	}

	c := Fetch(s, []Entity{1, 2, 3, 4, 5})
	if c.Len() != 5 {
		t.Fatalf("Expected 5 entries, got %d", c.Len())
	}
	if c.Has(4) {
		t.Error("Entity 5 has no component")
	}
	if c.At(4) != nil {
		t.Error("At must return nil for missing component")
	}

	c.Write(0, 100)
	*c.At(2) = 300

	// Изменение хранилища в обход контейнера не должно быть перезаписано
	s.Set(2, 222)

	if n := c.Submit(); n != 2 {
		t.Errorf("Expected 2 writes, got %d", n)
	}

	cases := map[Entity]int{1: 100, 2: 222, 3: 300, 4: 4}
	for e, want := range cases {
		if got, _ := s.Get(e); got != want {
			t.Errorf("Entity %d: expected %d, got %d", e, want, got)
		}
	}

	if n := c.Submit(); n != 0 {
		t.Errorf("Second submit must be empty, got %d writes", n)
	}
}

func TestContainer_ParallelLoadAndWrite(t *testing.T) {
	const n = 1000
	s := NewStore[int]()
	entities := make([]Entity, n)
	for i := range entities {
		entities[i] = Entity(i)
		s.Set(Entity(i), i)
	}

	c := NewContainer(s, entities)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < n; i += 4 {
				c.Load(i)
				c.Write(i, c.Read(i)*2)
			}
		}(w)
	}
	wg.Wait()
	c.Submit()

	for i := 0; i < n; i++ {
		if v, _ := s.Get(Entity(i)); v != 2*i {
			t.Fatalf("Entity %d: expected %d, got %d", i, 2*i, v)
		}
	}
}
