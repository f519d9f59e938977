// Package assignment ranks contractors for a piece of repair work.
package assignment

import (
	"strings"

	"github.com/civicflow/civicflow/internal/models"
)

// Weights of the scoring formula.
const (
	SpecializationBonus = 40.0
	RatingWeight        = 6.0
	WorkloadCapacity    = 20.0
	WorkloadPenalty     = 2.0
	ZoneBonus           = 10.0
)

// Scorer ranks contractors. It is stateless and safe for concurrent use.
type Scorer struct{}

// NewScorer returns a Scorer.
func NewScorer() *Scorer { return &Scorer{} }

// Score rates one contractor for work of the given category in district.
func (s *Scorer) Score(c *models.Contractor, category models.Category, district string) float64 {
	score := 0.0
	if c.HasSpecialization(category) {
		score += SpecializationBonus
	}
	score += RatingWeight * c.Rating
	score += max(0, WorkloadCapacity-WorkloadPenalty*float64(c.ActiveWorkload))
	if c.Zone != "" && district != "" && strings.EqualFold(c.Zone, district) {
		score += ZoneBonus
	}
	return score
}

// Best returns the highest scoring contractor, skipping excludeID. Ties
// keep the earliest candidate, so callers pass contractors in a stable
// order. It returns nil when no candidate remains.
func (s *Scorer) Best(contractors []*models.Contractor, category models.Category, district, excludeID string) *models.Contractor {
	var best *models.Contractor
	bestScore := 0.0
	for _, c := range contractors {
		if c == nil || (excludeID != "" && c.ID == excludeID) {
			continue
		}
		score := s.Score(c, category, district)
		if best == nil || score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// Ranked pairs a contractor with its score.
type Ranked struct {
	Contractor *models.Contractor
	Score      float64
}

// Rank scores every contractor, preserving input order.
func (s *Scorer) Rank(contractors []*models.Contractor, category models.Category, district string) []Ranked {
	out := make([]Ranked, 0, len(contractors))
	for _, c := range contractors {
		out = append(out, Ranked{Contractor: c, Score: s.Score(c, category, district)})
	}
	return out
}
