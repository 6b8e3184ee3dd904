package types

// Tree is an ordered category -> HTTP method -> items mapping. It is the shape
// shared by the endpoint catalog, the resolution buckets and the result ledger.
// Categories, methods and items keep insertion order.
type Tree[T any] struct {
	categories []*Category[T]
	index      map[string]*Category[T]
}

// Category holds the method groups of one catalog category
type Category[T any] struct {
	Name    string
	Methods []*Group[T]
	index   map[string]*Group[T]
}

// Group holds the ordered items of one category/method pair
type Group[T any] struct {
	Method string
	Items  []T
}

// NewTree creates an empty tree
func NewTree[T any]() *Tree[T] {
	return &Tree[T]{index: make(map[string]*Category[T])}
}

// Category returns the named category, creating it at the end if missing
func (t *Tree[T]) Category(name string) *Category[T] {
	if t.index == nil {
		t.index = make(map[string]*Category[T])
	}
	if c, ok := t.index[name]; ok {
		return c
	}
	c := &Category[T]{Name: name, index: make(map[string]*Group[T])}
	t.categories = append(t.categories, c)
	t.index[name] = c
	return c
}

// Group returns the method group of a category, creating it at the end if missing
func (c *Category[T]) Group(method string) *Group[T] {
	if c.index == nil {
		c.index = make(map[string]*Group[T])
	}
	if g, ok := c.index[method]; ok {
		return g
	}
	g := &Group[T]{Method: method}
	c.Methods = append(c.Methods, g)
	c.index[method] = g
	return g
}

// Append adds an item under category/method
func (t *Tree[T]) Append(category, method string, item T) {
	g := t.Category(category).Group(method)
	g.Items = append(g.Items, item)
}

// Categories returns the categories in insertion order
func (t *Tree[T]) Categories() []*Category[T] {
	if t == nil {
		return nil
	}
	return t.categories
}

// Count returns the sum of all list lengths
func (t *Tree[T]) Count() int {
	n := 0
	for _, c := range t.Categories() {
		for _, g := range c.Methods {
			n += len(g.Items)
		}
	}
	return n
}

// Walk visits every item in category -> method -> list order
func (t *Tree[T]) Walk(fn func(category, method string, item T)) {
	for _, c := range t.Categories() {
		for _, g := range c.Methods {
			for _, item := range g.Items {
				fn(c.Name, g.Method, item)
			}
		}
	}
}

// Items returns the items stored under category/method, or nil
func (t *Tree[T]) Items(category, method string) []T {
	if t == nil || t.index == nil {
		return nil
	}
	c, ok := t.index[category]
	if !ok {
		return nil
	}
	g, ok := c.index[method]
	if !ok {
		return nil
	}
	return g.Items
}
