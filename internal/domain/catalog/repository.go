package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ItemRepository reads the item master. Soft-deleted items are still returned
// so callers can tell "deleted" apart from "never existed".
type ItemRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Item, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Item, error)
	Save(ctx context.Context, item *Item) error
}
