// Package settings supplies shop delivery settings, falling back to
// configured defaults until an administrator saves the singleton row.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/tarla/storefront/internal/config"
	"github.com/tarla/storefront/internal/database"
	"github.com/tarla/storefront/internal/models"
	"github.com/tarla/storefront/internal/pricing"
)

type Source interface {
	GetSiteSettings(ctx context.Context) (*models.SiteSettings, error)
}

type Provider struct {
	source   Source
	fallback models.SiteSettings
}

func NewProvider(source Source, shop config.ShopConfig) *Provider {
	return &Provider{
		source: source,
		fallback: models.SiteSettings{
			SiteName:              shop.SiteName,
			DeliveryFee:           shop.DeliveryFee,
			FreeDeliveryThreshold: shop.FreeDeliveryThreshold,
			FreeDeliveryEnabled:   shop.FreeDeliveryEnabled,
			ContactPhone:          "+98 935 511 1355",
			ContactEmail:          "info@tarla.ir",
			Address:               "تهران، بزرگراه جلال آل احمد",
		},
	}
}

// Site returns the saved settings, or the fallback when none exist.
func (p *Provider) Site(ctx context.Context) (models.SiteSettings, error) {
	s, err := p.source.GetSiteSettings(ctx)
	if err != nil {
		if errors.Is(err, database.ErrSettingsNotFound) {
			return p.fallback, nil
		}
		return models.SiteSettings{}, fmt.Errorf("load site settings: %w", err)
	}
	return *s, nil
}

func (p *Provider) Pricing(ctx context.Context) (pricing.Settings, error) {
	s, err := p.Site(ctx)
	if err != nil {
		return pricing.Settings{}, err
	}
	return pricing.SettingsFrom(s), nil
}
