// Package models defines the request and response bodies of the HTTP API.
package models

import (
	"time"

	"github.com/maruel/imladris/internal/sheetdb"
)

// ListItemsRequest lists cached items, optionally restricted to a tag.
type ListItemsRequest struct {
	Tag     string `query:"tag"`
	Refresh bool   `query:"refresh"`
}

// ListItemsResponse is the response to ListItemsRequest.
type ListItemsResponse struct {
	Items   []*sheetdb.Item `json:"items"`
	BuiltAt time.Time       `json:"builtAt"`
}

// GetItemRequest fetches a single cached item.
type GetItemRequest struct {
	ID      string `path:"id"`
	Refresh bool   `query:"refresh"`
}

// TagsRequest lists the known tags.
type TagsRequest struct {
	Refresh bool `query:"refresh"`
}

// TagsResponse is the response to TagsRequest.
type TagsResponse struct {
	Tags []string `json:"tags"`
}

// CreateItemRequest adds an item.
type CreateItemRequest struct {
	Link        string   `json:"link"`
	Type        string   `json:"type"`
	Name        string   `json:"name,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`
}

// CreateImageRequest uploads an image and adds it as an item.
type CreateImageRequest struct {
	// Type is how Image is given: "file", "base64" or "url".
	Type        string   `json:"type"`
	Image       string   `json:"image"`
	Name        string   `json:"name,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`
}

// QueryRequest selects live rows by comparing one column.
type QueryRequest struct {
	Column    string `json:"column"`
	Op        string `json:"op"`
	Value     string `json:"value,omitempty"`
	FirstOnly bool   `json:"firstOnly,omitempty"`
}

// Match is one selected row.
type Match struct {
	Row   int         `json:"row"`
	Cells sheetdb.Row `json:"cells"`
}

// QueryResponse is the response to QueryRequest.
type QueryResponse struct {
	Matches []Match `json:"matches"`
}

// UpdateRequest overwrites columns of the selected rows.
type UpdateRequest struct {
	QueryRequest
	Set map[string]string `json:"set"`
}

// UpdateResponse is the response to UpdateRequest.
type UpdateResponse struct {
	Matched int   `json:"matched"`
	Updated []int `json:"updated"`
	Skipped []int `json:"skipped,omitempty"`
}

// DeleteItemRequest deletes an item by id.
type DeleteItemRequest struct {
	ID string `path:"id"`
}

// DeleteResponse lists the deleted rows, highest first.
type DeleteResponse struct {
	Deleted []int `json:"deleted"`
}

// HealthRequest is the request type for health check (empty).
type HealthRequest struct{}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status  string    `json:"status"`
	Items   int       `json:"items"`
	BuiltAt time.Time `json:"builtAt,omitzero"`
	Stale   bool      `json:"stale"`
	Version string    `json:"version,omitempty"`
}
