package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/loyaltix/server/internal/model"
)

// NewsRepo lists a tenant's promotional posts.
type NewsRepo interface {
	ListByBusiness(ctx context.Context, businessCode string, limit int) ([]model.News, error)
}

type newsRepo struct {
	db *sql.DB
}

// NewNewsRepo creates a new NewsRepo instance.
func NewNewsRepo(db *sql.DB) NewsRepo {
	return &newsRepo{db: db}
}

func (r *newsRepo) ListByBusiness(ctx context.Context, businessCode string, limit int) ([]model.News, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, business_code, title, content, content_type, views, created_at
		FROM news
		WHERE business_code = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, businessCode, limit)
	if err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	defer rows.Close()

	var items []model.News
	for rows.Next() {
		var n model.News
		if err := rows.Scan(&n.ID, &n.BusinessCode, &n.Title, &n.Content,
			&n.ContentType, &n.Views, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan news: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}
