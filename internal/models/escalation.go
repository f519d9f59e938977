package models

import "time"

// JurisdictionLevel is an administrative tier a complaint can sit at.
type JurisdictionLevel string

const (
	LevelWard     JurisdictionLevel = "ward"
	LevelBlock    JurisdictionLevel = "block"
	LevelDistrict JurisdictionLevel = "district"
	LevelCity     JurisdictionLevel = "city"
	LevelState    JurisdictionLevel = "state"
)

// Valid returns true if the level is known.
func (l JurisdictionLevel) Valid() bool {
	switch l {
	case LevelWard, LevelBlock, LevelDistrict, LevelCity, LevelState:
		return true
	default:
		return false
	}
}

// Next returns the level a breach escalates to. State is absorbing and
// unknown levels go straight to state.
func (l JurisdictionLevel) Next() JurisdictionLevel {
	switch l {
	case LevelWard:
		return LevelBlock
	case LevelBlock:
		return LevelDistrict
	case LevelDistrict:
		return LevelCity
	default:
		return LevelState
	}
}

// JurisdictionFor picks the most specific non-empty tier of a location.
func JurisdictionFor(loc Location) JurisdictionLevel {
	switch {
	case loc.Ward != "":
		return LevelWard
	case loc.Block != "":
		return LevelBlock
	case loc.District != "":
		return LevelDistrict
	default:
		return LevelCity
	}
}

// Escalation is an append-only record of a jurisdiction change.
type Escalation struct {
	ID          string            `json:"id"`
	ComplaintID string            `json:"complaint_id"`
	WorkOrderID *string           `json:"work_order_id,omitempty"`
	FromLevel   JurisdictionLevel `json:"from_level"`
	ToLevel     JurisdictionLevel `json:"to_level"`
	Reason      string            `json:"reason"`
	EscalatedAt time.Time         `json:"escalated_at"`
}
