package ecs

import (
	"slices"
	"sync"
)

// Entity - идентификатор сущности
type Entity uint64

// Store хранит компоненты одного типа по сущностям
type Store[T any] struct {
	items map[Entity]T
	mu    sync.RWMutex
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{
		items: make(map[Entity]T),
	}
}

// Set добавляет или заменяет компонент сущности
func (s *Store[T]) Set(e Entity, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[e] = v
}

func (s *Store[T]) Get(e Entity) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, exists := s.items[e]
	return v, exists
}

func (s *Store[T]) Has(e Entity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.items[e]
	return exists
}

// Remove удаляет компонент, возвращает false если его не было
func (s *Store[T]) Remove(e Entity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[e]; !exists {
		return false
	}
	delete(s.items, e)
	return true
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Entities возвращает отсортированный список сущностей с компонентом
func (s *Store[T]) Entities() []Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Entity, 0, len(s.items))
	for e := range s.items {
		result = append(result, e)
	}
	slices.Sort(result)
	return result
}

// setMany записывает пачку значений под одной блокировкой
func (s *Store[T]) setMany(entities []Entity, values []T, mask []bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for i, e := range entities {
		if !mask[i] {
			continue
		}
		s.items[e] = values[i]
		written++
	}
	return written
}
