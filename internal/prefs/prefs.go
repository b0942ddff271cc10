// Package prefs stores per-owner user preferences as JSON files.
package prefs

import (
	"errors"
	"fmt"
	"time"
)

// Theme is the UI color scheme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

const (
	DefaultTheme     = ThemeDark
	DefaultDailyGoal = 5
)

// ErrInvalid is returned (wrapped) when a preference value is rejected.
var ErrInvalid = errors.New("invalid preferences")

// Notifications holds reminder settings. They are stored only; nothing in
// tasksync delivers notifications.
type Notifications struct {
	DailyReminders bool `json:"dailyReminders"`
	EmailReminders bool `json:"emailReminders"`
}

// Preferences are one owner's settings.
type Preferences struct {
	Theme          Theme         `json:"theme"`
	DailyGoal      int           `json:"dailyGoal"`
	Notifications  Notifications `json:"notifications"`
	AccountCreated time.Time     `json:"accountCreated"`
}

// Defaults returns the preferences of a new account.
func Defaults() Preferences {
	return Preferences{
		Theme:     DefaultTheme,
		DailyGoal: DefaultDailyGoal,
		Notifications: Notifications{
			DailyReminders: true,
			EmailReminders: false,
		},
	}
}

// Validate checks every field.
func (p Preferences) Validate() error {
	if !p.Theme.Valid() {
		return fmt.Errorf("%w: unknown theme %q", ErrInvalid, p.Theme)
	}
	if p.DailyGoal <= 0 {
		return fmt.Errorf("%w: daily goal must be positive, got %d", ErrInvalid, p.DailyGoal)
	}
	return nil
}

// normalize replaces values a hand-edited or older file may have left
// unusable with their defaults.
func (p Preferences) normalize() Preferences {
	if !p.Theme.Valid() {
		p.Theme = DefaultTheme
	}
	if p.DailyGoal <= 0 {
		p.DailyGoal = DefaultDailyGoal
	}
	return p
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Theme          *Theme `json:"theme,omitempty"`
	DailyGoal      *int   `json:"dailyGoal,omitempty"`
	DailyReminders *bool  `json:"dailyReminders,omitempty"`
	EmailReminders *bool  `json:"emailReminders,omitempty"`
}

// Apply returns p with the patch applied.
func (pt Patch) Apply(p Preferences) Preferences {
	if pt.Theme != nil {
		p.Theme = *pt.Theme
	}
	if pt.DailyGoal != nil {
		p.DailyGoal = *pt.DailyGoal
	}
	if pt.DailyReminders != nil {
		p.Notifications.DailyReminders = *pt.DailyReminders
	}
	if pt.EmailReminders != nil {
		p.Notifications.EmailReminders = *pt.EmailReminders
	}
	return p
}
