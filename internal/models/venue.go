package models

import (
	"fmt"
	"strings"
	"time"
)

type Venue struct {
	ID          int64     `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Category    string    `json:"category" yaml:"category"`
	Location    string    `json:"location" yaml:"location"`
	Capacity    int64     `json:"capacity" yaml:"capacity"`
	Status      string    `json:"status" yaml:"status"`           // open, closed, maintenance
	OpenHours   string    `json:"open_hours" yaml:"open_hours"`   // advisory, e.g. "08:00-22:00"
	ImageURL    string    `json:"image_url" yaml:"image_url"`
	Description string    `json:"description" yaml:"description"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// ApplyDefaults fills the fields a creator may omit.
func (v *Venue) ApplyDefaults() {
	v.Name = strings.TrimSpace(v.Name)
	if v.Category == "" {
		v.Category = DefaultVenueCategory
	}
	if v.Status == "" {
		v.Status = VenueStatusOpen
	}
	if v.OpenHours == "" {
		v.OpenHours = DefaultOpenHours
	}
}

func (v *Venue) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("%w: venue name is required", ErrInvalidArgument)
	}
	if v.Capacity < 0 {
		return fmt.Errorf("%w: capacity must not be negative", ErrInvalidArgument)
	}
	if !IsVenueStatus(v.Status) {
		return fmt.Errorf("%w: unknown venue status %q", ErrInvalidArgument, v.Status)
	}
	return nil
}

// VenuePatch is a partial update; nil fields are left untouched.
type VenuePatch struct {
	Name        *string `json:"name"`
	Category    *string `json:"category"`
	Location    *string `json:"location"`
	Capacity    *int64  `json:"capacity"`
	Status      *string `json:"status"`
	OpenHours   *string `json:"open_hours"`
	ImageURL    *string `json:"image_url"`
	Description *string `json:"description"`
}

func (p VenuePatch) Apply(v *Venue) {
	if p.Name != nil {
		v.Name = strings.TrimSpace(*p.Name)
	}
	if p.Category != nil {
		v.Category = *p.Category
	}
	if p.Location != nil {
		v.Location = *p.Location
	}
	if p.Capacity != nil {
		v.Capacity = *p.Capacity
	}
	if p.Status != nil {
		v.Status = *p.Status
	}
	if p.OpenHours != nil {
		v.OpenHours = *p.OpenHours
	}
	if p.ImageURL != nil {
		v.ImageURL = *p.ImageURL
	}
	if p.Description != nil {
		v.Description = *p.Description
	}
}
