package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apierrors "github.com/maruel/imladris/internal/errors"
	"github.com/maruel/imladris/internal/imgur"
	"github.com/maruel/imladris/internal/models"
	"github.com/maruel/imladris/internal/sheetdb"
	"github.com/maruel/imladris/internal/sheets"
	"github.com/maruel/imladris/internal/storage"
)

// ItemHandler handles item-related HTTP requests.
type ItemHandler struct {
	items *storage.ItemService
}

// NewItemHandler creates a new item handler.
func NewItemHandler(items *storage.ItemService) *ItemHandler {
	return &ItemHandler{items: items}
}

// ListItems returns the cached items, optionally only those with a tag.
func (h *ItemHandler) ListItems(ctx context.Context, req models.ListItemsRequest) (*models.ListItemsResponse, error) {
	var l *storage.Listing
	var err error
	if req.Tag != "" {
		l, err = h.items.ItemsByTag(ctx, req.Tag, req.Refresh)
	} else {
		l, err = h.items.List(ctx, req.Refresh)
	}
	if err != nil {
		return nil, toAPIError(err)
	}
	return &models.ListItemsResponse{Items: l.Items, BuiltAt: l.BuiltAt}, nil
}

// GetItem returns a single item by id.
func (h *ItemHandler) GetItem(ctx context.Context, req models.GetItemRequest) (*sheetdb.Item, error) {
	it, err := h.items.GetByID(ctx, req.ID, req.Refresh)
	if err != nil {
		return nil, toAPIError(err)
	}
	return it, nil
}

// ListTags returns every known tag.
func (h *ItemHandler) ListTags(ctx context.Context, req models.TagsRequest) (*models.TagsResponse, error) {
	tags, err := h.items.Tags(ctx, req.Refresh)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &models.TagsResponse{Tags: tags}, nil
}

// CreateItem adds an item.
func (h *ItemHandler) CreateItem(ctx context.Context, req models.CreateItemRequest) (*sheetdb.Item, error) {
	it, err := h.items.AddItem(ctx, &sheetdb.NewItem{
		Link:        req.Link,
		Kind:        req.Type,
		Name:        req.Name,
		Tags:        req.Tags,
		Description: req.Description,
	})
	if err != nil {
		return nil, toAPIError(err)
	}
	return it, nil
}

// CreateImage uploads an image and adds it as an item.
func (h *ItemHandler) CreateImage(ctx context.Context, req models.CreateImageRequest) (*storage.Image, error) {
	if req.Image == "" {
		return nil, apierrors.MissingField("image")
	}
	img, err := h.items.AddImage(ctx, req.Type, req.Image, &sheetdb.NewItem{
		Name:        req.Name,
		Tags:        req.Tags,
		Description: req.Description,
	})
	if err != nil {
		return nil, toAPIError(err)
	}
	return img, nil
}

// Query returns the live rows matching the request.
func (h *ItemHandler) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	pred, err := predicate(&req)
	if err != nil {
		return nil, err
	}
	matches, err := h.items.Filter(ctx, req.Column, pred, req.FirstOnly)
	if err != nil {
		return nil, toAPIError(err)
	}
	resp := &models.QueryResponse{Matches: make([]models.Match, 0, len(matches))}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, models.Match{Row: m.Position, Cells: m.Row})
	}
	return resp, nil
}

// Update overwrites columns of the live rows matching the request.
func (h *ItemHandler) Update(ctx context.Context, req models.UpdateRequest) (*models.UpdateResponse, error) {
	pred, err := predicate(&req.QueryRequest)
	if err != nil {
		return nil, err
	}
	if len(req.Set) == 0 {
		return nil, apierrors.MissingField("set")
	}
	values := make(map[sheetdb.Column]string, len(req.Set))
	for k, v := range req.Set {
		values[sheetdb.Column(k)] = v
	}
	if v, ok := values[sheetdb.ColType]; ok {
		kind, err := sheetdb.ParseKind(v)
		if err != nil {
			return nil, toAPIError(err)
		}
		values[sheetdb.ColType] = string(kind)
	}
	if v, ok := values[sheetdb.ColTags]; ok {
		values[sheetdb.ColTags] = strings.ToLower(v)
	}
	mutate, err := sheetdb.Set(values)
	if err != nil {
		return nil, toAPIError(err)
	}
	res, err := h.items.Update(ctx, req.Column, pred, mutate, req.FirstOnly)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &models.UpdateResponse{Matched: res.Matched, Updated: res.Updated, Skipped: res.Skipped}, nil
}

// Delete removes the live rows matching the request.
func (h *ItemHandler) Delete(ctx context.Context, req models.QueryRequest) (*models.DeleteResponse, error) {
	pred, err := predicate(&req)
	if err != nil {
		return nil, err
	}
	deleted, err := h.items.Delete(ctx, req.Column, pred, req.FirstOnly)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &models.DeleteResponse{Deleted: deleted}, nil
}

// DeleteItem removes an item by id.
func (h *ItemHandler) DeleteItem(ctx context.Context, req models.DeleteItemRequest) (*models.DeleteResponse, error) {
	deleted, err := h.items.DeleteByID(ctx, req.ID)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &models.DeleteResponse{Deleted: deleted}, nil
}

func predicate(req *models.QueryRequest) (sheetdb.Predicate, error) {
	if req.Column == "" {
		return nil, apierrors.MissingField("column")
	}
	if req.Op == "" {
		return sheetdb.Equals(req.Value), nil
	}
	pred, err := sheetdb.Match(sheetdb.Op(req.Op), req.Value)
	if err != nil {
		return nil, apierrors.NewAPIError(http.StatusBadRequest, apierrors.ErrInvalidFormat, err.Error())
	}
	return pred, nil
}

// toAPIError maps service errors to HTTP errors.
func toAPIError(err error) error {
	var sheetsErr *sheets.APIError
	var imgurErr *imgur.Error
	switch {
	case errors.Is(err, sheetdb.ErrNotFound):
		return apierrors.ItemNotFound(err)
	case errors.Is(err, sheetdb.ErrUnknownColumn):
		return apierrors.NewAPIError(http.StatusBadRequest, apierrors.ErrUnknownColumn, err.Error()).
			WithDetail("columns", sheetdb.Columns)
	case errors.Is(err, sheetdb.ErrInvalidKind):
		return apierrors.NewAPIError(http.StatusBadRequest, apierrors.ErrInvalidType, err.Error())
	case errors.Is(err, sheetdb.ErrMissingLink):
		return apierrors.MissingField("link")
	case errors.Is(err, sheetdb.ErrRowWidth), errors.Is(err, sheetdb.ErrLengthMismatch):
		return apierrors.BadRequest(err.Error())
	case errors.Is(err, imgur.ErrUnsupportedType):
		return apierrors.NewAPIError(http.StatusBadRequest, apierrors.ErrInvalidType, err.Error())
	case errors.Is(err, storage.ErrNoImageHost):
		return apierrors.NotImplemented("image upload")
	case errors.Is(err, context.DeadlineExceeded):
		return apierrors.Timeout(err)
	case errors.As(err, &imgurErr) && imgurErr.Status >= 400 && imgurErr.Status < 500 && imgurErr.Status != 429:
		return apierrors.BadRequest(imgurErr.Message).Wrap(err)
	case errors.As(err, &sheetsErr), errors.As(err, &imgurErr), errors.Is(err, storage.ErrRebuild):
		return apierrors.Upstream("remote service failed", err)
	default:
		return apierrors.InternalWithError("internal error", err)
	}
}
