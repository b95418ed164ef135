package models

import "time"

// CategoryRecord is one row of the canonical category table
type CategoryRecord struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	Tag          string            `gorm:"type:varchar(255);not null;uniqueIndex" json:"tag"`
	Descriptions map[string]string `gorm:"type:text;serializer:json" json:"descriptions"`
	Usage        int               `gorm:"not null;default:0" json:"usage"`
	Sample       string            `gorm:"type:varchar(500)" json:"sample,omitempty"`
	CreatedAt    time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for CategoryRecord
func (CategoryRecord) TableName() string {
	return "categories"
}

// UndefinedCategory is a genre seen in a feed that has no table record
type UndefinedCategory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Tag         string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"tag"`
	Sample      string    `gorm:"type:varchar(500)" json:"sample"`
	FirstSeenAt time.Time `gorm:"not null" json:"first_seen_at"`
}

// TableName specifies the table name for UndefinedCategory
func (UndefinedCategory) TableName() string {
	return "undefined_categories"
}

// CategoryOverride assigns a category to programmes by exact title or description
type CategoryOverride struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Field     string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_category_overrides_match" json:"field"` // "title" or "description"
	Match     string    `gorm:"type:varchar(500);not null;uniqueIndex:idx_category_overrides_match" json:"match"`
	Tag       string    `gorm:"type:varchar(255);not null" json:"tag"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// TableName specifies the table name for CategoryOverride
func (CategoryOverride) TableName() string {
	return "category_overrides"
}
