package models

// Analytics is the admin overview of complaint volume.
type Analytics struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"by_status"`
	ByCategory  map[string]int `json:"by_category"`
	ByRiskLevel map[string]int `json:"by_risk_level"`
}

// ContractorPerformance summarises completed work per contractor.
type ContractorPerformance struct {
	ContractorID       string  `json:"contractor_id"`
	Name               string  `json:"name"`
	Completed          int     `json:"completed"`
	AvgResolutionHours float64 `json:"avg_resolution_hours"`
	Rating             float64 `json:"rating"`
}

// Performance is the admin view of delivery against SLAs.
type Performance struct {
	AvgResolutionHours map[string]float64      `json:"avg_resolution_hours_by_category"`
	SLABreachRate      float64                 `json:"sla_breach_rate"`
	SLABreaches        int                     `json:"sla_breaches"`
	TotalMeasured      int                     `json:"total_measured"`
	Contractors        []ContractorPerformance `json:"contractor_performance"`
	TotalEscalations   int                     `json:"total_escalations"`
}

// HeatmapPoint is one plotted complaint on the public map.
type HeatmapPoint struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lng"`
	Category  Category  `json:"category"`
	RiskLevel RiskLevel `json:"risk_level"`
}

// PublicDashboard is the anonymous transparency view.
type PublicDashboard struct {
	Total          int            `json:"total"`
	Resolved       int            `json:"resolved"`
	ResolutionRate float64        `json:"resolution_rate"`
	ByCategory     map[string]int `json:"by_category"`
	ByStatus       map[string]int `json:"by_status"`
	Heatmap        []HeatmapPoint `json:"heatmap"`
}
