package sheetdb

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingID is returned when a row has an empty Id cell.
	ErrMissingID = errors.New("row has no id")
	// ErrMissingLink is returned when a new item has no link.
	ErrMissingLink = errors.New("link is required")
	// ErrInvalidKind is returned when an item type is not supported.
	ErrInvalidKind = errors.New("unsupported item type")
	// ErrNotFound is returned when no item has the requested id.
	ErrNotFound = errors.New("item not found")
)

// Kind is the type of an item.
type Kind string

// Supported item kinds.
const (
	KindLink  Kind = "link"
	KindImage Kind = "image"
)

// ParseKind validates s case-insensitively and returns the normalized Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindLink, KindImage:
		return k, nil
	default:
		return "", fmt.Errorf("%w %q", ErrInvalidKind, s)
	}
}

// Item is one decoded sheet row.
type Item struct {
	ID          string   `json:"id"`
	Link        string   `json:"link"`
	Kind        Kind     `json:"type"`
	Name        string   `json:"name,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`
}

// HasTag reports whether the item carries tag.
func (it *Item) HasTag(tag string) bool {
	for _, t := range it.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Row encodes the item as a full-width row.
func (it *Item) Row() Row {
	return Row{it.ID, it.Link, string(it.Kind), it.Name, strings.Join(it.Tags, ","), it.Description}
}

// Decode converts a row into an Item.
//
// The row must be well-formed and carry an id. Empty cells decode to the
// zero value; an empty Tags cell decodes to nil tags.
func Decode(row Row) (*Item, error) {
	if !row.WellFormed() {
		return nil, fmt.Errorf("%w: got %d cells, want %d", ErrRowTooShort, len(row), Width)
	}
	id, ok := row.Cell(ColID)
	if !ok {
		return nil, ErrMissingID
	}
	it := &Item{ID: id, Tags: row.Tags()}
	it.Link, _ = row.Cell(ColLink)
	kind, _ := row.Cell(ColType)
	it.Kind = Kind(strings.ToLower(kind))
	it.Name, _ = row.Cell(ColName)
	it.Description, _ = row.Cell(ColDescription)
	return it, nil
}

// IDGenerator returns a new unique item id.
type IDGenerator func() string

// NewItem holds the caller-supplied fields of an item to create.
type NewItem struct {
	Link        string
	Kind        string
	Name        string
	Tags        []string
	Description string
}

// Encode validates n, assigns it an id from gen and returns the item and its
// full-width row.
//
// Name defaults to Link. Tags are stored lowercased.
func Encode(gen IDGenerator, n *NewItem) (*Item, Row, error) {
	if n.Link == "" {
		return nil, nil, ErrMissingLink
	}
	kind, err := ParseKind(n.Kind)
	if err != nil {
		return nil, nil, err
	}
	name := n.Name
	if name == "" {
		name = n.Link
	}
	var tags []string
	for _, t := range n.Tags {
		tags = append(tags, strings.ToLower(t))
	}
	id := gen()
	if id == "" {
		return nil, nil, ErrMissingID
	}
	it := &Item{
		ID:          id,
		Link:        n.Link,
		Kind:        kind,
		Name:        name,
		Tags:        tags,
		Description: n.Description,
	}
	return it, it.Row(), nil
}
