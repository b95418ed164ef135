package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/glefebvre/guidepost/internal/category"
	"github.com/glefebvre/guidepost/internal/models"
)

// CategoryStore loads and saves the canonical category table, the custom
// overrides and the undefined-category ledger
type CategoryStore struct {
	db *gorm.DB
}

// NewCategoryStore creates a category store on db
func NewCategoryStore(db *gorm.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

// Load reads the whole table
func (s *CategoryStore) Load() (*category.Table, error) {
	var rows []models.CategoryRecord
	if err := s.db.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	var overrideRows []models.CategoryOverride
	if err := s.db.Order("id").Find(&overrideRows).Error; err != nil {
		return nil, fmt.Errorf("failed to load category overrides: %w", err)
	}

	var undefinedRows []models.UndefinedCategory
	if err := s.db.Order("id").Find(&undefinedRows).Error; err != nil {
		return nil, fmt.Errorf("failed to load undefined categories: %w", err)
	}

	records := make([]category.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, category.Record{
			Tag:          r.Tag,
			Descriptions: r.Descriptions,
			Usage:        r.Usage,
			Sample:       r.Sample,
		})
	}

	overrides := make([]category.Override, 0, len(overrideRows))
	for _, o := range overrideRows {
		overrides = append(overrides, category.Override{
			Field: category.OverrideField(o.Field),
			Match: o.Match,
			Tag:   o.Tag,
		})
	}

	undefined := make([]category.Undefined, 0, len(undefinedRows))
	for _, u := range undefinedRows {
		undefined = append(undefined, category.Undefined{Tag: u.Tag, Sample: u.Sample})
	}

	return category.NewTable(records, overrides, undefined), nil
}

// Save writes usage counters, samples and descriptions back, adds new custom
// overrides and appends newly undefined genres to the ledger. Existing ledger
// rows keep their first sample.
func (s *CategoryStore) Save(table *category.Table) error {
	now := time.Now()

	records := table.Records()
	rows := make([]models.CategoryRecord, 0, len(records))
	for _, r := range records {
		rows = append(rows, models.CategoryRecord{
			Tag:          r.Tag,
			Descriptions: r.Descriptions,
			Usage:        r.Usage,
			Sample:       r.Sample,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	overrides := table.Overrides()
	overrideRows := make([]models.CategoryOverride, 0, len(overrides))
	for _, o := range overrides {
		overrideRows = append(overrideRows, models.CategoryOverride{
			Field:     string(o.Field),
			Match:     o.Match,
			Tag:       o.Tag,
			CreatedAt: now,
		})
	}

	undefined := table.Undefined()
	undefinedRows := make([]models.UndefinedCategory, 0, len(undefined))
	for _, u := range undefined {
		undefinedRows = append(undefinedRows, models.UndefinedCategory{
			Tag:         u.Tag,
			Sample:      u.Sample,
			FirstSeenAt: now,
		})
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "tag"}},
				DoUpdates: clause.AssignmentColumns([]string{"descriptions", "usage", "sample", "updated_at"}),
			}).CreateInBatches(rows, 200).Error
			if err != nil {
				return fmt.Errorf("failed to save categories: %w", err)
			}
		}

		if len(overrideRows) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "field"}, {Name: "match"}},
				DoUpdates: clause.AssignmentColumns([]string{"tag"}),
			}).CreateInBatches(overrideRows, 200).Error
			if err != nil {
				return fmt.Errorf("failed to save category overrides: %w", err)
			}
		}

		if len(undefinedRows) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "tag"}},
				DoNothing: true,
			}).CreateInBatches(undefinedRows, 200).Error
			if err != nil {
				return fmt.Errorf("failed to save undefined categories: %w", err)
			}
		}

		return nil
	})
}

// Undefined lists the ledger, oldest first
func (s *CategoryStore) Undefined() ([]models.UndefinedCategory, error) {
	var rows []models.UndefinedCategory
	if err := s.db.Order("first_seen_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list undefined categories: %w", err)
	}
	return rows, nil
}

// Records lists the table, most used first
func (s *CategoryStore) Records() ([]models.CategoryRecord, error) {
	var rows []models.CategoryRecord
	if err := s.db.Order("usage DESC, tag").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return rows, nil
}
