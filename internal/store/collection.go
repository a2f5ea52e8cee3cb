package store

// collection is an ordered list of records keyed by a string id. It is not
// safe for concurrent use; Store serialises access.
type collection[T any] struct {
	items []T
	id    func(T) string
}

func newCollection[T any](id func(T) string) collection[T] {
	return collection[T]{id: id}
}

func (c *collection[T]) list() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *collection[T]) len() int { return len(c.items) }

func (c *collection[T]) index(id string) int {
	for i, v := range c.items {
		if c.id(v) == id {
			return i
		}
	}
	return -1
}

func (c *collection[T]) find(id string) (T, bool) {
	if i := c.index(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

func (c *collection[T]) ids() []string {
	out := make([]string, len(c.items))
	for i, v := range c.items {
		out[i] = c.id(v)
	}
	return out
}

func (c *collection[T]) append(v T) { c.items = append(c.items, v) }

// replace swaps the first record with id for v.
func (c *collection[T]) replace(id string, v T) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.items[i] = v
	return true
}

// remove drops every record with id and reports how many were removed.
func (c *collection[T]) remove(id string) int {
	kept := c.items[:0]
	for _, v := range c.items {
		if c.id(v) != id {
			kept = append(kept, v)
		}
	}
	removed := len(c.items) - len(kept)
	var zero T
	for i := len(kept); i < len(c.items); i++ {
		c.items[i] = zero
	}
	c.items = kept
	return removed
}

func (c *collection[T]) reset(items []T) { c.items = items }
