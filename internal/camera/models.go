// Package camera holds camera configuration records, the stores that persist
// them and the resolver that turns a record into a device connection address.
package camera

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no configuration exists for a camera id.
	ErrNotFound = errors.New("camera not found")

	// ErrInvalidConfig is returned when a record fails validation.
	ErrInvalidConfig = errors.New("invalid camera config")
)

// Config is the stored configuration of one camera. Optional fields are
// pointers; nil means "not configured" and the resolver applies a default.
type Config struct {
	ID          string  `gorm:"primaryKey;size:128" json:"id"`
	Name        string  `gorm:"size:255" json:"name"`
	SourceURI   *string `gorm:"size:2048" json:"source_uri,omitempty"`
	Host        *string `gorm:"size:255" json:"host,omitempty"`
	Port        *int    `json:"port,omitempty"`
	Username    *string `gorm:"size:255" json:"username,omitempty"`
	Password    *string `gorm:"size:255" json:"-"`
	QualityTier *string `gorm:"size:32" json:"quality_tier,omitempty"`

	Online       bool       `gorm:"not null;default:false" json:"online"`
	LastStatusAt *time.Time `json:"last_status_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName implements gorm's Tabler.
func (Config) TableName() string {
	return "cameras"
}

// Tier returns the configured quality tier, or "" when unset.
func (c Config) Tier() string {
	if c.QualityTier == nil {
		return ""
	}
	return *c.QualityTier
}

// Validate checks a record before it is written to a store.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidConfig)
	}
	if c.Port != nil && (*c.Port < 1 || *c.Port > 65535) {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, *c.Port)
	}
	if c.SourceURI != nil && *c.SourceURI != "" {
		u, err := url.Parse(*c.SourceURI)
		if err != nil {
			return fmt.Errorf("%w: source uri: %v", ErrInvalidConfig, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: source uri %q must be absolute", ErrInvalidConfig, u.Redacted())
		}
	}
	if c.Host != nil && strings.ContainsAny(*c.Host, "/@ ") {
		return fmt.Errorf("%w: host %q", ErrInvalidConfig, *c.Host)
	}
	return nil
}

// String returns s as a pointer, or nil when s is empty.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Int returns n as a pointer, or nil when n is zero.
func Int(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
