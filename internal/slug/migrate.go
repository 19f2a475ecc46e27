package slug

import (
	"context"
	"errors"
	"fmt"
	"log"

	"mangamirror/internal/store"
)

// Migrator renames every catalog entry whose slug still carries legacy
// artifacts (trailing numeric disambiguators from the old scheme) to its
// normalized form. A title, its chapter references and all its chapter
// content move together; an occupied target slug is logged and left
// alone, never overwritten.
//
// Because NormalizeLegacy is idempotent the migration can run on every
// startup without moving anything twice.
type Migrator struct {
	Store *store.Store
}

// Run returns how many titles were moved and how many were skipped due
// to a target-slug conflict.
func (m *Migrator) Run(ctx context.Context) (moved, conflicts int, err error) {
	slugs, err := m.Store.Slugs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("enumerate catalog: %w", err)
	}

	for _, old := range slugs {
		clean := NormalizeLegacy(old)
		if clean == old || clean == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return moved, conflicts, err
		}

		switch err := m.Store.Rename(ctx, old, clean); {
		case err == nil:
			log.Printf("[migrate] %s -> %s", old, clean)
			moved++
		case errors.Is(err, store.ErrConflict):
			log.Printf("[migrate] %s -> %s: target occupied, leaving as is", old, clean)
			conflicts++
		default:
			return moved, conflicts, err
		}
	}

	if moved > 0 || conflicts > 0 {
		log.Printf("[migrate] done: %d moved, %d conflicts", moved, conflicts)
	}
	return moved, conflicts, nil
}
