package cart

import (
	"encoding/json"
	"iter"
)

// Line is one cart entry. Quantity is always > 0 while stored.
type Line struct {
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
}

// LineView is a priced line produced by Lines.
type LineView struct {
	Item     string
	Quantity int
	Subtotal int64
}

// Pricer resolves an item name to its current price. Items missing from the
// pricer (deleted from the catalog after being added) contribute zero.
type Pricer interface {
	Price(name string) (int64, bool)
}

// Cart holds a user's in-progress selections in insertion order. Any
// operation that would leave a quantity <= 0 removes the line instead.
type Cart struct {
	lines []Line
}

func New() *Cart {
	return &Cart{}
}

// FromLines rebuilds a cart from persisted lines, dropping invalid entries.
func FromLines(lines []Line) *Cart {
	c := New()
	for _, l := range lines {
		if l.Item == "" || l.Quantity <= 0 {
			continue
		}
		c.Add(l.Item, l.Quantity)
	}
	return c
}

func (c *Cart) index(item string) int {
	for i, l := range c.lines {
		if l.Item == item {
			return i
		}
	}
	return -1
}

// Add accumulates qty onto an existing line or appends a new one. Non-positive
// qty is ignored.
func (c *Cart) Add(item string, qty int) {
	if item == "" || qty <= 0 {
		return
	}
	if i := c.index(item); i >= 0 {
		c.lines[i].Quantity += qty
		return
	}
	c.lines = append(c.lines, Line{Item: item, Quantity: qty})
}

// SetQuantity overwrites a line's quantity; qty <= 0 removes the line.
func (c *Cart) SetQuantity(item string, qty int) {
	if qty <= 0 {
		c.Remove(item)
		return
	}
	if i := c.index(item); i >= 0 {
		c.lines[i].Quantity = qty
		return
	}
	c.lines = append(c.lines, Line{Item: item, Quantity: qty})
}

func (c *Cart) Remove(item string) {
	if i := c.index(item); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) Empty() bool {
	return len(c.lines) == 0
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) Quantity(item string) int {
	if i := c.index(item); i >= 0 {
		return c.lines[i].Quantity
	}
	return 0
}

// Items returns a copy of the raw lines in insertion order.
func (c *Cart) Items() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Total sums quantity * price over lines still present in the catalog. Stale
// lines are skipped, never an error.
func (c *Cart) Total(p Pricer) int64 {
	var total int64
	for _, l := range c.lines {
		price, ok := p.Price(l.Item)
		if !ok {
			continue
		}
		total += int64(l.Quantity) * price
	}
	return total
}

// Lines yields priced lines in insertion order. The sequence is restartable:
// each range starts over from the first line.
func (c *Cart) Lines(p Pricer) iter.Seq[LineView] {
	return func(yield func(LineView) bool) {
		for _, l := range c.lines {
			var subtotal int64
			if price, ok := p.Price(l.Item); ok {
				subtotal = int64(l.Quantity) * price
			}
			if !yield(LineView{Item: l.Item, Quantity: l.Quantity, Subtotal: subtotal}) {
				return
			}
		}
	}
}

// MarshalJSON persists the cart as an ordered line array.
func (c *Cart) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.lines)
}

func (c *Cart) UnmarshalJSON(data []byte) error {
	var lines []Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return err
	}
	*c = *FromLines(lines)
	return nil
}
