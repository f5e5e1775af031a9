package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tarla/storefront/internal/database"
	"github.com/tarla/storefront/internal/models"
)

const discountCodesCodeKey = "discount_codes_code_key"

const discountColumns = `id, code, discount_percent, max_usage, used_count, is_active, valid_from, valid_to, created_at`

func scanDiscount(row scanner) (*models.DiscountCode, error) {
	d := &models.DiscountCode{}
	err := row.Scan(
		&d.ID,
		&d.Code,
		&d.DiscountPercent,
		&d.MaxUsage,
		&d.UsedCount,
		&d.IsActive,
		&d.ValidFrom,
		&d.ValidTo,
		&d.CreatedAt,
	)
	return d, err
}

// DiscountByCode looks code up exactly; callers normalize it first.
func (s *Store) DiscountByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	d, err := scanDiscount(s.db.QueryRowContext(ctx,
		`SELECT `+discountColumns+` FROM discount_codes WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrDiscountNotFound
		}
		return nil, fmt.Errorf("get discount code: %w", err)
	}

	return d, nil
}

type DiscountInput struct {
	Code            string    `json:"code"`
	DiscountPercent int       `json:"discount_percent"`
	MaxUsage        int       `json:"max_usage"`
	ValidFrom       time.Time `json:"valid_from"`
	ValidTo         time.Time `json:"valid_to"`
}

func (in DiscountInput) Validate() error {
	switch {
	case strings.TrimSpace(in.Code) == "":
		return errors.New("code is required")
	case len(strings.TrimSpace(in.Code)) > 20:
		return errors.New("code is longer than 20 characters")
	case in.DiscountPercent < 1 || in.DiscountPercent > 100:
		return errors.New("discount percent must be between 1 and 100")
	case in.MaxUsage < 1:
		return errors.New("max usage must be at least 1")
	case in.ValidFrom.IsZero() || in.ValidTo.IsZero():
		return errors.New("validity window is required")
	case in.ValidFrom.After(in.ValidTo):
		return errors.New("valid_from must not be after valid_to")
	}
	return nil
}

// CreateDiscountCode stores the code upper-cased so lookups can be exact.
func (s *Store) CreateDiscountCode(ctx context.Context, in DiscountInput) (*models.DiscountCode, error) {
	d, err := scanDiscount(s.db.QueryRowContext(ctx,
		`INSERT INTO discount_codes (code, discount_percent, max_usage, valid_from, valid_to)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+discountColumns,
		strings.ToUpper(strings.TrimSpace(in.Code)), in.DiscountPercent, in.MaxUsage, in.ValidFrom, in.ValidTo))
	if err != nil {
		if database.IsUniqueViolation(err, discountCodesCodeKey) {
			return nil, database.ErrDuplicateDiscountCode
		}
		return nil, fmt.Errorf("create discount code: %w", err)
	}

	return d, nil
}

func (s *Store) SetDiscountCodeActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE discount_codes SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("set discount code active: %w", err)
	}
	return expectOneRow(result, database.ErrDiscountNotFound)
}

func (s *Store) ListDiscountCodes(ctx context.Context) ([]models.DiscountCode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+discountColumns+` FROM discount_codes ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list discount codes: %w", err)
	}
	defer rows.Close()

	codes := []models.DiscountCode{}
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan discount code: %w", err)
		}
		codes = append(codes, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return codes, nil
}
