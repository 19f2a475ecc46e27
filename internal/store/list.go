package store

import (
	"context"
	"fmt"
	"strings"

	"mangamirror/pkg/models"
)

const (
	defaultPageSize = 10
	maxPageSize     = 25
)

// ListQuery is the paged query contract exposed to the presentation
// layer. Genres is any-match; TitleContains is a case-insensitive
// substring filter.
type ListQuery struct {
	TitleContains string
	Genres        []string
	Page          int // 1-based
	Limit         int
}

type PageResult struct {
	Items     []models.Title `json:"data"`
	Total     int            `json:"total"`
	Page      int            `json:"page"`
	PagesLeft int            `json:"pagesLeft"`
	Limit     int            `json:"limit"`
}

// ListPage returns one page of titles sorted by updatedAt descending.
func (s *Store) ListPage(ctx context.Context, q ListQuery) (*PageResult, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}

	where, args := buildListWhere(q)

	var total int
	row := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM titles`+where, args...)
	if err := row.Scan(&total); err != nil {
		return nil, fmt.Errorf("count titles: %w", err)
	}

	offset := (q.Page - 1) * q.Limit
	listArgs := append(append([]any{}, args...), q.Limit, offset)
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+titleColumns+` FROM titles`+where+
			` ORDER BY updated_at DESC, slug ASC LIMIT ? OFFSET ?`, listArgs...)
	if err != nil {
		return nil, fmt.Errorf("list titles: %w", err)
	}
	defer rows.Close()

	items := make([]models.Title, 0, q.Limit)
	for rows.Next() {
		t, err := scanTitleRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}

	pages := (total + q.Limit - 1) / q.Limit
	return &PageResult{
		Items:     items,
		Total:     total,
		Page:      q.Page,
		PagesLeft: pages - q.Page,
		Limit:     q.Limit,
	}, nil
}

func buildListWhere(q ListQuery) (string, []any) {
	var where []string
	var args []any

	if s := strings.TrimSpace(q.TitleContains); s != "" {
		where = append(where, "LOWER(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(s)+"%")
	}

	// any-match genre filter against the stored JSON text
	var genreOr []string
	for _, g := range q.Genres {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		genreOr = append(genreOr, "LOWER(genres) LIKE ?")
		args = append(args, `%"`+strings.ToLower(g)+`"%`)
	}
	if len(genreOr) > 0 {
		where = append(where, "("+strings.Join(genreOr, " OR ")+")")
	}

	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}
