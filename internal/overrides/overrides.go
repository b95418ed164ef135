package overrides

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"gorm.io/gorm"

	"github.com/glefebvre/guidepost/internal/config"
	"github.com/glefebvre/guidepost/internal/models"
	"github.com/glefebvre/guidepost/internal/schedule"
)

// Override is a user change to a channel matched by display name
type Override struct {
	Name          string
	Rename        string
	CallSign      string
	ChannelNumber string
	Exclude       bool
	IsRuntime     bool
}

// Manager handles override operations
type Manager struct {
	overrides map[string]Override
	order     []string
}

// Result counts what Apply changed
type Result struct {
	Matched  int
	Renamed  int
	Excluded int
}

// NewManager creates a new override manager
func NewManager() *Manager {
	return &Manager{
		overrides: make(map[string]Override),
	}
}

func key(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Add registers o. A runtime override is never replaced by a file-based one.
func (m *Manager) Add(o Override) {
	k := key(o.Name)
	if k == "" {
		return
	}
	existing, ok := m.overrides[k]
	if ok && existing.IsRuntime && !o.IsRuntime {
		return
	}
	if !ok {
		m.order = append(m.order, k)
	}
	m.overrides[k] = o
}

// LoadFromConfig loads file-based overrides
func (m *Manager) LoadFromConfig(list []config.ChannelOverride) {
	for _, o := range list {
		m.Add(Override{
			Name:          o.Name,
			Rename:        o.Rename,
			CallSign:      o.CallSign,
			ChannelNumber: o.ChannelNumber,
			Exclude:       o.Exclude,
		})
	}
}

// LoadFromDatabase loads runtime overrides from the database
func (m *Manager) LoadFromDatabase(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	var rows []models.ChannelOverride
	if err := db.Order("id").Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to load runtime overrides from database: %w", err)
	}

	for _, row := range rows {
		m.Add(Override{
			Name:          row.Name,
			Rename:        row.Rename,
			CallSign:      row.CallSign,
			ChannelNumber: row.ChannelNumber,
			Exclude:       row.Exclude,
			IsRuntime:     true,
		})
	}
	return nil
}

// LoadAll loads config-based overrides, then database rows which take precedence
func (m *Manager) LoadAll(list []config.ChannelOverride, db *gorm.DB) error {
	m.LoadFromConfig(list)
	if db == nil {
		return nil
	}
	return m.LoadFromDatabase(db)
}

// Lookup finds the override for a display name, ignoring case
func (m *Manager) Lookup(name string) (Override, bool) {
	o, ok := m.overrides[key(name)]
	return o, ok
}

// Apply changes matching channels in place. It must run once, after import,
// since a rename would otherwise stop later matches.
func (m *Manager) Apply(channels []*schedule.Channel) Result {
	var res Result
	if len(m.overrides) == 0 {
		return res
	}
	for _, ch := range channels {
		o, ok := m.Lookup(ch.Name)
		if !ok {
			continue
		}
		res.Matched++
		if o.Exclude {
			ch.Excluded = true
			res.Excluded++
		}
		if o.Rename != "" && o.Rename != ch.Name {
			ch.Name = o.Rename
			res.Renamed++
		}
		if o.CallSign != "" {
			ch.CallSign = o.CallSign
		}
		if o.ChannelNumber != "" {
			ch.ChannelNumber = o.ChannelNumber
		}
	}
	return res
}

// All returns overrides in the order they were first registered
func (m *Manager) All() []Override {
	out := make([]Override, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.overrides[k])
	}
	return out
}

// Count returns the number of loaded overrides
func (m *Manager) Count() int {
	return len(m.overrides)
}
