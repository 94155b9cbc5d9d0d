package ecs

// Container - упорядоченное представление компонентов T для набора сущностей.
// Индекс i стабилен в пределах одного шага. Load, Read, Write и At по разным
// индексам можно вызывать параллельно, Submit - только после всех записей.
type Container[T any] struct {
	store    *Store[T]
	entities []Entity
	values   []T
	present  []bool
	dirty    []bool
}

// NewContainer создает пустое представление. Значения загружаются через Load.
func NewContainer[T any](store *Store[T], entities []Entity) *Container[T] {
	n := len(entities)
	return &Container[T]{
		store:    store,
		entities: entities,
		values:   make([]T, n),
		present:  make([]bool, n),
		dirty:    make([]bool, n),
	}
}

// Fetch создает представление и сразу загружает все значения
func Fetch[T any](store *Store[T], entities []Entity) *Container[T] {
	c := NewContainer(store, entities)
	for i := range entities {
		c.Load(i)
	}
	return c
}

// Load читает значение индекса i из хранилища
func (c *Container[T]) Load(i int) {
	c.values[i], c.present[i] = c.store.Get(c.entities[i])
	c.dirty[i] = false
}

func (c *Container[T]) Len() int {
	return len(c.entities)
}

func (c *Container[T]) Entity(i int) Entity {
	return c.entities[i]
}

// Has сообщает, есть ли у сущности компонент на момент Load
func (c *Container[T]) Has(i int) bool {
	return c.present[i]
}

func (c *Container[T]) Read(i int) T {
	return c.values[i]
}

// Write буферизует запись до Submit
func (c *Container[T]) Write(i int, v T) {
	c.values[i] = v
	c.present[i] = true
	c.dirty[i] = true
}

// At возвращает указатель на буферизованное значение и помечает его
// измененным. Указатель живет до следующего Load.
func (c *Container[T]) At(i int) *T {
	if !c.present[i] {
		return nil
	}
	c.dirty[i] = true
	return &c.values[i]
}

// Submit записывает измененные значения в хранилище
func (c *Container[T]) Submit() int {
	n := c.store.setMany(c.entities, c.values, c.dirty)
	clear(c.dirty)
	return n
}
