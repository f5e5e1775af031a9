package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tarla/storefront/internal/database"
	"github.com/tarla/storefront/internal/models"
)

type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

func (in CategoryInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("name is required")
	}
	return nil
}

// ErrDuplicateCategory is returned when a category name is already taken.
var ErrDuplicateCategory = errors.New("category name already exists")

func scanCategory(row scanner) (models.Category, error) {
	var c models.Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.IsActive, &c.CreatedAt)
	return c, err
}

// ListCategories returns categories by name. activeOnly hides the ones
// switched off by an administrator.
func (s *Store) ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, is_active, created_at
		 FROM categories
		 WHERE is_active OR NOT $1
		 ORDER BY name`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}

func (s *Store) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx,
		`INSERT INTO categories (name, description, is_active)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, description, is_active, created_at`,
		strings.TrimSpace(in.Name), in.Description, in.IsActive))
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, ErrDuplicateCategory
		}
		return nil, fmt.Errorf("create category: %w", err)
	}

	return &c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, id int64, in CategoryInput) (*models.Category, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx,
		`UPDATE categories
		 SET name = $1, description = $2, is_active = $3
		 WHERE id = $4
		 RETURNING id, name, description, is_active, created_at`,
		strings.TrimSpace(in.Name), in.Description, in.IsActive, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCategoryNotFound
		}
		if database.IsUniqueViolation(err, "") {
			return nil, ErrDuplicateCategory
		}
		return nil, fmt.Errorf("update category: %w", err)
	}

	return &c, nil
}
