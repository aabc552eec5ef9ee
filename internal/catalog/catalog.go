package catalog

import (
	"sync/atomic"
)

// Item is one catalog entry. Price is in the smallest currency unit.
type Item struct {
	Name  string `json:"name" yaml:"name"`
	Price int64  `json:"price" yaml:"price"`
}

type snapshot struct {
	items  []Item
	prices map[string]int64
}

// Catalog is a read-mostly name → price mapping. Readers always see a
// consistent snapshot; Replace swaps the whole snapshot atomically so an
// admin refresh never blocks message handling.
type Catalog struct {
	snap atomic.Pointer[snapshot]
}

func New(items []Item) *Catalog {
	c := &Catalog{}
	c.Replace(items)
	return c
}

// Replace installs a new snapshot. Duplicate names keep the first entry.
func (c *Catalog) Replace(items []Item) {
	s := &snapshot{
		prices: make(map[string]int64, len(items)),
	}
	for _, it := range items {
		if it.Name == "" || it.Price < 0 {
			continue
		}
		if _, dup := s.prices[it.Name]; dup {
			continue
		}
		s.items = append(s.items, it)
		s.prices[it.Name] = it.Price
	}
	c.snap.Store(s)
}

func (c *Catalog) Price(name string) (int64, bool) {
	s := c.snap.Load()
	if s == nil {
		return 0, false
	}
	p, ok := s.prices[name]
	return p, ok
}

func (c *Catalog) Has(name string) bool {
	_, ok := c.Price(name)
	return ok
}

// Items returns the catalog in its configured display order.
func (c *Catalog) Items() []Item {
	s := c.snap.Load()
	if s == nil {
		return nil
	}
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}
