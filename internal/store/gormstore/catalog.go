package gormstore

import (
	"context"
	"errors"

	"github.com/Dave-Sleek/promptshare-economy/pkg/economy"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	errorSubjectGiftCatalog = "gift_catalog"
	errorSubjectTemplate    = "premium_template"
)

// Catalog implements economy.Catalog over the gift_catalog and
// premium_templates tables. Lookups only; the economy never writes here.
type Catalog struct {
	db *gorm.DB
}

// NewCatalog returns a Catalog backed by gorm.DB.
func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

func (catalog *Catalog) GetGift(ctx context.Context, giftID string) (economy.Gift, error) {
	var model GiftCatalogEntry
	err := catalog.db.WithContext(ctx).Where("gift_id = ?", giftID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return economy.Gift{}, wrapStoreError(errorSubjectGiftCatalog, errorCodeGet, economy.ErrUnknownGift)
	}
	if err != nil {
		return economy.Gift{}, wrapStoreError(errorSubjectGiftCatalog, errorCodeGet, err)
	}
	return economy.Gift{
		GiftID:   model.GiftID,
		Name:     model.Name,
		Icon:     model.Icon,
		CoinCost: economy.CoinAmount(model.CoinCost),
	}, nil
}

func (catalog *Catalog) GetTemplate(ctx context.Context, templateID string) (economy.Template, error) {
	var model PremiumTemplate
	err := catalog.db.WithContext(ctx).Where("template_id = ?", templateID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return economy.Template{}, wrapStoreError(errorSubjectTemplate, errorCodeGet, economy.ErrUnknownTemplate)
	}
	if err != nil {
		return economy.Template{}, wrapStoreError(errorSubjectTemplate, errorCodeGet, err)
	}
	return economy.Template{
		TemplateID: model.TemplateID,
		CreatorID:  model.CreatorID,
		UnlockCost: economy.CoinAmount(model.UnlockCost),
	}, nil
}

// SeedDefaultGifts inserts the stock gift catalog, leaving existing rows
// untouched. Used for local SQLite runs.
func SeedDefaultGifts(ctx context.Context, db *gorm.DB) error {
	gifts := []GiftCatalogEntry{
		{GiftID: "rose", Name: "Rose", Icon: "🌹", CoinCost: 10},
		{GiftID: "heart", Name: "Heart", Icon: "❤️", CoinCost: 20},
		{GiftID: "star", Name: "Star", Icon: "⭐", CoinCost: 30},
		{GiftID: "trophy", Name: "Trophy", Icon: "🏆", CoinCost: 50},
		{GiftID: "diamond", Name: "Diamond", Icon: "💎", CoinCost: 100},
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&gifts).Error
	if err != nil {
		return wrapStoreError(errorSubjectGiftCatalog, errorCodeCreate, err)
	}
	return nil
}
