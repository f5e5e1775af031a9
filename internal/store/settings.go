package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tarla/storefront/internal/database"
	"github.com/tarla/storefront/internal/models"
)

const settingsColumns = `site_name, delivery_fee, free_delivery_threshold, free_delivery_enabled,
	contact_phone, contact_phone2, contact_email, address, updated_at`

func scanSettings(row scanner) (*models.SiteSettings, error) {
	s := &models.SiteSettings{}
	err := row.Scan(
		&s.SiteName,
		&s.DeliveryFee,
		&s.FreeDeliveryThreshold,
		&s.FreeDeliveryEnabled,
		&s.ContactPhone,
		&s.ContactPhone2,
		&s.ContactEmail,
		&s.Address,
		&s.UpdatedAt,
	)
	return s, err
}

// GetSiteSettings returns ErrSettingsNotFound until an administrator has
// saved the singleton row.
func (s *Store) GetSiteSettings(ctx context.Context) (*models.SiteSettings, error) {
	settings, err := scanSettings(s.db.QueryRowContext(ctx,
		`SELECT `+settingsColumns+` FROM site_settings WHERE id = 1`))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("get site settings: %w", err)
	}

	return settings, nil
}

// SaveSiteSettings writes the singleton row, creating it on first use.
func (s *Store) SaveSiteSettings(ctx context.Context, in models.SiteSettings) (*models.SiteSettings, error) {
	query := `
		INSERT INTO site_settings (id, site_name, delivery_fee, free_delivery_threshold, free_delivery_enabled,
			contact_phone, contact_phone2, contact_email, address, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO UPDATE SET
			site_name = EXCLUDED.site_name,
			delivery_fee = EXCLUDED.delivery_fee,
			free_delivery_threshold = EXCLUDED.free_delivery_threshold,
			free_delivery_enabled = EXCLUDED.free_delivery_enabled,
			contact_phone = EXCLUDED.contact_phone,
			contact_phone2 = EXCLUDED.contact_phone2,
			contact_email = EXCLUDED.contact_email,
			address = EXCLUDED.address,
			updated_at = NOW()
		RETURNING ` + settingsColumns

	settings, err := scanSettings(s.db.QueryRowContext(ctx, query,
		in.SiteName, in.DeliveryFee, in.FreeDeliveryThreshold, in.FreeDeliveryEnabled,
		in.ContactPhone, in.ContactPhone2, in.ContactEmail, in.Address))
	if err != nil {
		return nil, fmt.Errorf("save site settings: %w", err)
	}

	return settings, nil
}
