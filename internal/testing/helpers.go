package testing

import (
	"fmt"
	"html"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/glefebvre/guidepost/internal/models"
)

// TestDB creates an in-memory SQLite database for testing
func TestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// One connection, otherwise each gets its own empty in-memory database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// CreateChannel creates a test channel
func CreateChannel(db *gorm.DB, overrides ...func(*models.Channel)) *models.Channel {
	channel := &models.Channel{
		ExternalID: fmt.Sprintf("chan_%d.example", time.Now().UnixNano()),
		Name:       "Test Channel",
		IDKind:     "name",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	for _, override := range overrides {
		override(channel)
	}

	db.Create(channel)
	return channel
}

// CreateEntry creates a test schedule entry on channel
func CreateEntry(db *gorm.DB, channel *models.Channel, start time.Time, overrides ...func(*models.ScheduleEntry)) *models.ScheduleEntry {
	entry := &models.ScheduleEntry{
		ChannelID:       channel.ID,
		Start:           start,
		DurationSeconds: 1800,
		EventName:       "Test Programme",
		Kind:            "generic",
		CreatedAt:       time.Now(),
	}

	for _, override := range overrides {
		override(entry)
	}

	db.Create(entry)
	return entry
}

// WithExternalID sets the external id of a channel
func WithExternalID(id string) func(*models.Channel) {
	return func(c *models.Channel) {
		c.ExternalID = id
	}
}

// WithName sets the display name of a channel
func WithName(name string) func(*models.Channel) {
	return func(c *models.Channel) {
		c.Name = name
	}
}

// WithEventName sets the event name of an entry
func WithEventName(name string) func(*models.ScheduleEntry) {
	return func(e *models.ScheduleEntry) {
		e.EventName = name
	}
}

// AssertCount verifies the count of records in a table
func AssertCount(t *testing.T, db *gorm.DB, model interface{}, expected int64, message string) {
	t.Helper()
	var count int64
	db.Model(model).Count(&count)
	if count != expected {
		t.Fatalf("%s: expected count %d, got %d", message, expected, count)
	}
}

// FeedBuilder assembles small XMLTV documents for tests
type FeedBuilder struct {
	channels   []string
	programmes []string
}

// NewFeed starts an empty feed
func NewFeed() *FeedBuilder {
	return &FeedBuilder{}
}

// Channel adds a channel. extra is raw XML placed inside the element.
func (b *FeedBuilder) Channel(id, name string, extra ...string) *FeedBuilder {
	var sb strings.Builder
	fmt.Fprintf(&sb, `  <channel id="%s">`+"\n", html.EscapeString(id))
	fmt.Fprintf(&sb, `    <display-name>%s</display-name>`+"\n", html.EscapeString(name))
	for _, e := range extra {
		sb.WriteString("    " + e + "\n")
	}
	sb.WriteString("  </channel>\n")
	b.channels = append(b.channels, sb.String())
	return b
}

// ChannelRaw adds a channel element verbatim
func (b *FeedBuilder) ChannelRaw(xml string) *FeedBuilder {
	b.channels = append(b.channels, "  "+xml+"\n")
	return b
}

// Programme adds a programme with a title. extra is raw XML placed inside the element.
func (b *FeedBuilder) Programme(channel, start, stop, title string, extra ...string) *FeedBuilder {
	var sb strings.Builder
	fmt.Fprintf(&sb, `  <programme start="%s" stop="%s" channel="%s">`+"\n", start, stop, html.EscapeString(channel))
	fmt.Fprintf(&sb, `    <title lang="en">%s</title>`+"\n", html.EscapeString(title))
	for _, e := range extra {
		sb.WriteString("    " + e + "\n")
	}
	sb.WriteString("  </programme>\n")
	b.programmes = append(b.programmes, sb.String())
	return b
}

// String renders the document
func (b *FeedBuilder) String() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<tv generator-info-name="guidepost-test">` + "\n")
	for _, c := range b.channels {
		sb.WriteString(c)
	}
	for _, p := range b.programmes {
		sb.WriteString(p)
	}
	sb.WriteString("</tv>\n")
	return sb.String()
}

// Reader returns the document as a reader
func (b *FeedBuilder) Reader() *strings.Reader {
	return strings.NewReader(b.String())
}
