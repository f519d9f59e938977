package models

import (
	"fmt"
	"math"
	"time"
)

// RatingWeight is the share a new citizen rating carries in a contractor's
// moving average.
const RatingWeight = 0.3

// Contractor is an external party that carries out work orders.
type Contractor struct {
	ID              string     `json:"id"`
	TenantID        *string    `json:"tenant_id,omitempty"`
	Name            string     `json:"name"`
	Specializations []Category `json:"specializations"`
	Rating          float64    `json:"rating"`
	ActiveWorkload  int        `json:"active_workload"`
	Zone            string     `json:"zone,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// HasSpecialization reports whether the contractor handles the category.
func (c *Contractor) HasSpecialization(cat Category) bool {
	for _, s := range c.Specializations {
		if s == cat {
			return true
		}
	}
	return false
}

// Validate checks if the contractor data is valid.
func (c *Contractor) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Rating < 0 || c.Rating > 5 {
		return fmt.Errorf("rating must be between 0 and 5")
	}
	if c.ActiveWorkload < 0 {
		return fmt.Errorf("active_workload cannot be negative")
	}
	for _, s := range c.Specializations {
		if !s.Valid() {
			return fmt.Errorf("invalid specialization: %s", s)
		}
	}
	return nil
}

// BlendRating folds a 1-5 citizen rating into the current average,
// rounded to two decimals.
func BlendRating(current float64, rating int) float64 {
	blended := (1-RatingWeight)*current + RatingWeight*float64(rating)
	return math.Round(blended*100) / 100
}

// Tenant is a municipality that owns complaints and contractors.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
