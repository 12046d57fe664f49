package moderation

import (
	"context"

	"github.com/luisjglz/evaluat/pkg/interfaces"
	"github.com/luisjglz/evaluat/pkg/types"
)

// Materialize promotes an approved proposal into its catalog. Matching
// is case-insensitive on name: an existing entry is returned unchanged,
// so approving twice, re-running materialization, or racing a
// concurrent approval never creates a duplicate.
func Materialize(ctx context.Context, store interfaces.ModerationStore, p *types.Proposal) (*types.CatalogEntry, error) {
	existing, err := store.FindCatalogEntryByName(ctx, p.Kind, p.Value)
	if err == nil {
		return existing, nil
	}
	if !types.IsType(err, types.ErrorTypeNotFound) {
		return nil, err
	}

	entry := &types.CatalogEntry{
		Name:        p.Value,
		Description: p.Description,
	}
	if createErr := store.CreateCatalogEntry(ctx, p.Kind, entry); createErr != nil {
		if !types.IsType(createErr, types.ErrorTypeConflict) {
			return nil, createErr
		}
		// A concurrent materialization won the insert; reuse its row
		return store.FindCatalogEntryByName(ctx, p.Kind, p.Value)
	}
	return entry, nil
}
