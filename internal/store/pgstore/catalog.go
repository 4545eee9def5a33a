package pgstore

import (
	"context"
	"errors"

	"github.com/Dave-Sleek/promptshare-economy/pkg/economy"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	errorSubjectGiftCatalog = "gift_catalog"
	errorSubjectTemplate    = "premium_template"

	sqlSelectGift = `
		select gift_id, name, icon, coin_cost from gift_catalog where gift_id = $1
	`

	sqlSelectTemplate = `
		select template_id, creator_id, unlock_cost from premium_templates where template_id = $1
	`
)

// Catalog implements economy.Catalog over the gift and template tables.
type Catalog struct {
	pool *pgxpool.Pool
}

// NewCatalog returns a Catalog backed by a pgx pool.
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

func (catalog *Catalog) GetGift(ctx context.Context, giftID string) (economy.Gift, error) {
	var gift economy.Gift
	var cost int64
	err := catalog.pool.QueryRow(ctx, sqlSelectGift, giftID).Scan(&gift.GiftID, &gift.Name, &gift.Icon, &cost)
	if errors.Is(err, pgx.ErrNoRows) {
		return economy.Gift{}, wrapStoreError(errorSubjectGiftCatalog, errorCodeGet, economy.ErrUnknownGift)
	}
	if err != nil {
		return economy.Gift{}, wrapStoreError(errorSubjectGiftCatalog, errorCodeGet, err)
	}
	gift.CoinCost = economy.CoinAmount(cost)
	return gift, nil
}

func (catalog *Catalog) GetTemplate(ctx context.Context, templateID string) (economy.Template, error) {
	var template economy.Template
	var cost int64
	err := catalog.pool.QueryRow(ctx, sqlSelectTemplate, templateID).Scan(&template.TemplateID, &template.CreatorID, &cost)
	if errors.Is(err, pgx.ErrNoRows) {
		return economy.Template{}, wrapStoreError(errorSubjectTemplate, errorCodeGet, economy.ErrUnknownTemplate)
	}
	if err != nil {
		return economy.Template{}, wrapStoreError(errorSubjectTemplate, errorCodeGet, err)
	}
	template.UnlockCost = economy.CoinAmount(cost)
	return template, nil
}
