// Package todo implements the flat, ordered session checklist the
// orchestrator uses as its loop-continuation signal.
package todo

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Item statuses.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Item is a single checklist entry.
type Item struct {
	Text   string `json:"text"`
	Status string `json:"status"`
}

// List is a contiguous, 1-indexed ordered list of items. Positions are
// purely positional: deleting or inserting at position k shifts every
// subsequent item, so an item_number is never a stable identity.
type List struct {
	items []Item
}

// leadingNumbering matches a numbering token like "3. " or "12) " at the
// start of supplied item text. Models frequently echo list numbering back;
// storing it would double-number the rendered list.
var leadingNumbering = regexp.MustCompile(`^\d+[.)]\s+`)

// NewList returns an empty list.
func NewList() *List {
	return &List{}
}

// normalize strips one leading numbering token unless keepNumbering is set.
func normalize(text string, keepNumbering bool) string {
	if keepNumbering {
		return text
	}
	return leadingNumbering.ReplaceAllString(text, "")
}

// checkNumber validates a 1-indexed position against the current length.
func (l *List) checkNumber(n int) error {
	count := len(l.items)
	if n < 1 || n > count {
		noun := "items"
		if count == 1 {
			noun = "item"
		}
		return fmt.Errorf("item_number %d is out of range (list has %d %s)", n, count, noun)
	}
	return nil
}

// Len returns the number of items.
func (l *List) Len() int {
	return len(l.items)
}

// Items returns a copy of all items in order.
func (l *List) Items() []Item {
	out := make([]Item, len(l.items))
	copy(out, l.items)
	return out
}

// Get returns the item at 1-indexed position n.
func (l *List) Get(n int) (Item, error) {
	if err := l.checkNumber(n); err != nil {
		return Item{}, err
	}
	return l.items[n-1], nil
}

// Add appends a new open item and returns its 1-indexed position.
func (l *List) Add(text string, keepNumbering bool) int {
	l.items = append(l.items, Item{Text: normalize(text, keepNumbering), Status: StatusOpen})
	return len(l.items)
}

// AddAll appends multiple open items in order and returns the position
// of the first one added. Returns 0 if texts is empty.
func (l *List) AddAll(texts []string, keepNumbering bool) int {
	if len(texts) == 0 {
		return 0
	}
	first := len(l.items) + 1
	for _, t := range texts {
		l.Add(t, keepNumbering)
	}
	return first
}

// InsertBefore inserts a new open item before position n.
func (l *List) InsertBefore(n int, text string, keepNumbering bool) error {
	if err := l.checkNumber(n); err != nil {
		return err
	}
	idx := n - 1
	l.items = append(l.items[:idx], append([]Item{{Text: normalize(text, keepNumbering), Status: StatusOpen}}, l.items[idx:]...)...)
	return nil
}

// InsertAfter inserts a new open item after position n.
func (l *List) InsertAfter(n int, text string, keepNumbering bool) error {
	if err := l.checkNumber(n); err != nil {
		return err
	}
	idx := n // 0-based insertion index for "after position n"
	l.items = append(l.items[:idx], append([]Item{{Text: normalize(text, keepNumbering), Status: StatusOpen}}, l.items[idx:]...)...)
	return nil
}

// Delete removes the item at position n and returns it. Items n+1..N
// shift down by one.
func (l *List) Delete(n int) (Item, error) {
	if err := l.checkNumber(n); err != nil {
		return Item{}, err
	}
	idx := n - 1
	removed := l.items[idx]
	l.items = append(l.items[:idx], l.items[idx+1:]...)
	return removed, nil
}

// Modify replaces the text of the item at position n.
func (l *List) Modify(n int, text string, keepNumbering bool) error {
	if err := l.checkNumber(n); err != nil {
		return err
	}
	l.items[n-1].Text = normalize(text, keepNumbering)
	return nil
}

// Close marks the item at position n closed. The second return reports
// whether that left the list with no open items.
func (l *List) Close(n int) (allClosed bool, err error) {
	if err := l.checkNumber(n); err != nil {
		return false, err
	}
	l.items[n-1].Status = StatusClosed
	return l.AllClosed(), nil
}

// Reopen marks the item at position n open again.
func (l *List) Reopen(n int) error {
	if err := l.checkNumber(n); err != nil {
		return err
	}
	l.items[n-1].Status = StatusOpen
	return nil
}

// OpenNumbers returns the 1-indexed positions of all open items.
func (l *List) OpenNumbers() []int {
	var open []int
	for i, it := range l.items {
		if it.Status == StatusOpen {
			open = append(open, i+1)
		}
	}
	return open
}

// AllClosed reports whether every item is closed. An empty list is
// trivially all-closed; callers that care must also check Len.
func (l *List) AllClosed() bool {
	for _, it := range l.items {
		if it.Status == StatusOpen {
			return false
		}
	}
	return true
}

// Formatted renders the list as numbered checkbox lines.
func (l *List) Formatted() string {
	if len(l.items) == 0 {
		return "(empty todo list)"
	}
	var b strings.Builder
	for i, it := range l.items {
		box := "[ ]"
		if it.Status == StatusClosed {
			box = "[x]"
		}
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, box, it.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// MarshalJSON serializes the list as a bare item array for session
// persistence.
func (l *List) MarshalJSON() ([]byte, error) {
	if l.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.items)
}

// UnmarshalJSON restores the list from a bare item array.
func (l *List) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &l.items)
}
