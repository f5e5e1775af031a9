package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/tarla/storefront/internal/database"
	"github.com/tarla/storefront/internal/models"
)

const productColumns = `
	p.id, p.name, p.description, p.price, p.image_url, p.category_id, c.name,
	p.is_featured, p.is_available, p.stock_quantity, p.created_at`

const productFrom = `
	FROM products p
	JOIN categories c ON c.id = p.category_id`

func scanProduct(row scanner) (models.Product, error) {
	var product models.Product
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.ImageURL,
		&product.CategoryID,
		&product.CategoryName,
		&product.IsFeatured,
		&product.IsAvailable,
		&product.StockQuantity,
		&product.CreatedAt,
	)
	return product, err
}

func collectProducts(rows *sql.Rows) ([]models.Product, error) {
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// ProductFilter narrows the storefront listing. Nil bounds are ignored.
type ProductFilter struct {
	Search   string
	Category string
	PriceMin *int64
	PriceMax *int64
}

// likeEscaper quotes LIKE wildcards so search text matches literally.
// Postgres uses backslash as the default LIKE escape character.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func (f ProductFilter) where() (string, []any) {
	conds := []string{"p.is_available"}
	var args []any

	if f.Search != "" {
		args = append(args, "%"+likeEscaper.Replace(f.Search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(p.name ILIKE $%d OR p.description ILIKE $%d)", n, n))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("c.name = $%d", len(args)))
	}
	if f.PriceMin != nil {
		args = append(args, *f.PriceMin)
		conds = append(conds, fmt.Sprintf("p.price >= $%d", len(args)))
	}
	if f.PriceMax != nil {
		args = append(args, *f.PriceMax)
		conds = append(conds, fmt.Sprintf("p.price <= $%d", len(args)))
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	where, args := filter.where()
	query := `SELECT ` + productColumns + productFrom + `
		` + where + `
		ORDER BY p.created_at DESC, p.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return collectProducts(rows)
}

func (s *Store) FeaturedProducts(ctx context.Context, limit int) ([]models.Product, error) {
	query := `SELECT ` + productColumns + productFrom + `
		WHERE p.is_featured AND p.is_available
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list featured products: %w", err)
	}
	return collectProducts(rows)
}

func (s *Store) RelatedProducts(ctx context.Context, product models.Product, limit int) ([]models.Product, error) {
	query := `SELECT ` + productColumns + productFrom + `
		WHERE p.category_id = $1 AND p.is_available AND p.id <> $2
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, product.CategoryID, product.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list related products: %w", err)
	}
	return collectProducts(rows)
}

// GetProduct returns the product regardless of availability.
func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + productFrom + `
		WHERE p.id = $1`

	product, err := scanProduct(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return &product, nil
}

// GetAvailableProduct treats unavailable products as missing.
func (s *Store) GetAvailableProduct(ctx context.Context, id int64) (*models.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsAvailable {
		return nil, database.ErrProductNotFound
	}
	return product, nil
}

func (s *Store) AvailableProducts(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	out := make(map[int64]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `SELECT ` + productColumns + productFrom + `
		WHERE p.id = ANY($1) AND p.is_available`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lookup products: %w", err)
	}

	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

type ProductInput struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Price         int64  `json:"price"`
	ImageURL      string `json:"image_url"`
	CategoryID    int64  `json:"category_id"`
	IsFeatured    bool   `json:"is_featured"`
	IsAvailable   bool   `json:"is_available"`
	StockQuantity int    `json:"stock_quantity"`
}

func (in ProductInput) Validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return errors.New("name is required")
	case in.Price < 1:
		return errors.New("price must be positive")
	case in.StockQuantity < 0:
		return errors.New("stock quantity cannot be negative")
	case in.CategoryID < 1:
		return errors.New("category is required")
	}
	return nil
}

func (s *Store) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO products (name, description, price, image_url, category_id, is_featured, is_available, stock_quantity)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		in.Name, in.Description, in.Price, in.ImageURL, in.CategoryID, in.IsFeatured, in.IsAvailable, in.StockQuantity,
	).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	return s.GetProduct(ctx, id)
}

func (s *Store) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*models.Product, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE products
		 SET name = $1, description = $2, price = $3, image_url = $4, category_id = $5,
		     is_featured = $6, is_available = $7, stock_quantity = $8
		 WHERE id = $9`,
		in.Name, in.Description, in.Price, in.ImageURL, in.CategoryID, in.IsFeatured, in.IsAvailable, in.StockQuantity, id,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	if err := expectOneRow(result, database.ErrProductNotFound); err != nil {
		return nil, err
	}

	return s.GetProduct(ctx, id)
}

// SetProductsAvailability flips is_available for ids in bulk and returns
// how many rows changed.
func (s *Store) SetProductsAvailability(ctx context.Context, ids []int64, available bool) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE products SET is_available = $1 WHERE id = ANY($2)`,
		available, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("set products availability: %w", err)
	}
	return result.RowsAffected()
}

func (s *Store) SetProductsFeatured(ctx context.Context, ids []int64, featured bool) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE products SET is_featured = $1 WHERE id = ANY($2)`,
		featured, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("set products featured: %w", err)
	}
	return result.RowsAffected()
}

func (s *Store) ListAllProducts(ctx context.Context, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + productColumns + productFrom + `
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}

	return newOffsetPage(products, total, page, pageSize), nil
}

func expectOneRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}
