package models

import "time"

// Channel is a guide channel keyed by the feed's external id
type Channel struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ExternalID    string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"external_id"`
	Name          string    `gorm:"type:varchar(255);not null;index" json:"name"`
	CallSign      string    `gorm:"type:varchar(100)" json:"call_sign,omitempty"`
	IDKind        string    `gorm:"type:varchar(20);not null" json:"id_kind"`
	Network       int       `gorm:"not null;default:0;index:idx_channels_triplet" json:"network"`
	Transport     int       `gorm:"not null;default:0;index:idx_channels_triplet" json:"transport"`
	Service       int       `gorm:"not null;default:0;index:idx_channels_triplet" json:"service"`
	LCN           int       `gorm:"not null;default:0" json:"lcn,omitempty"`
	ChannelNumber string    `gorm:"type:varchar(20)" json:"channel_number,omitempty"`
	Icon          string    `gorm:"type:text" json:"icon,omitempty"`
	URL           string    `gorm:"type:text" json:"url,omitempty"`
	LastRunID     string    `gorm:"type:varchar(36);index" json:"last_run_id,omitempty"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`

	// Associations
	Entries []ScheduleEntry `gorm:"foreignKey:ChannelID;constraint:OnDelete:CASCADE" json:"entries,omitempty"`
}

// TableName specifies the table name for Channel
func (Channel) TableName() string {
	return "channels"
}

// ChannelOverride is a runtime channel override stored in the database.
// Rows here take precedence over overrides from the configuration file.
type ChannelOverride struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	Rename        string    `gorm:"type:varchar(255)" json:"rename,omitempty"`
	CallSign      string    `gorm:"type:varchar(100)" json:"call_sign,omitempty"`
	ChannelNumber string    `gorm:"type:varchar(20)" json:"channel_number,omitempty"`
	Exclude       bool      `gorm:"not null;default:false" json:"exclude"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for ChannelOverride
func (ChannelOverride) TableName() string {
	return "channel_overrides"
}
