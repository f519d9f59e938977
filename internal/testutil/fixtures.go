package testutil

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/civicflow/civicflow/internal/models"
)

// FixtureTenant creates a test tenant with sensible defaults.
func FixtureTenant(overrides ...func(*models.Tenant)) *models.Tenant {
	tenant := &models.Tenant{
		ID:        uuid.New().String(),
		Name:      "Test Municipal Corporation " + uuid.New().String()[:8],
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	for _, override := range overrides {
		override(tenant)
	}
	return tenant
}

// FixtureContractor creates a test contractor with sensible defaults.
func FixtureContractor(overrides ...func(*models.Contractor)) *models.Contractor {
	id := uuid.New().String()
	contractor := &models.Contractor{
		ID:              id,
		Name:            "Contractor " + id[:8],
		Specializations: []models.Category{models.CategoryRoads},
		Rating:          4.0,
		Zone:            "Central",
		Phone:           "+91-80-0000-0000",
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	}
	for _, override := range overrides {
		override(contractor)
	}
	return contractor
}

// FixtureComplaint creates a freshly submitted, unclassified complaint.
func FixtureComplaint(overrides ...func(*models.Complaint)) *models.Complaint {
	id := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Second)
	complaint := &models.Complaint{
		ID:           id,
		TrackingCode: models.TrackingCodePrefix + strings.ToUpper(strings.ReplaceAll(id, "-", "")[:8]),
		CitizenEmail: "citizen@example.com",
		CitizenName:  "Test Citizen",
		Description:  "Large pothole on the main road causing accidents",
		Location: models.Location{
			Address:  "MG Road, Bangalore",
			District: "Central",
			City:     "Bangalore",
		},
		Status:    models.ComplaintStatusSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, override := range overrides {
		override(complaint)
	}
	return complaint
}

// FixtureClassifiedComplaint creates a complaint that has been through
// classification and risk assessment.
func FixtureClassifiedComplaint(category models.Category, level models.RiskLevel, overrides ...func(*models.Complaint)) *models.Complaint {
	return FixtureComplaint(append([]func(*models.Complaint){
		func(c *models.Complaint) {
			c.Category = &category
			c.RiskLevel = &level
			c.PriorityScore = category.DefaultScore()
			c.ClassificationConfidence = 0.9
			c.Department = category.Department()
			c.Status = models.ComplaintStatusPrioritized
		},
	}, overrides...)...)
}

// WithCoordinates places a complaint at the given point.
func WithCoordinates(lat, lon float64) func(*models.Complaint) {
	return func(c *models.Complaint) {
		c.Latitude = &lat
		c.Longitude = &lon
	}
}

// FixtureWorkOrder creates a pipeline work order for a complaint.
func FixtureWorkOrder(complaintID string, overrides ...func(*models.WorkOrder)) *models.WorkOrder {
	now := time.Now().UTC().Truncate(time.Second)
	order := &models.WorkOrder{
		ID:            uuid.New().String(),
		ComplaintID:   complaintID,
		Origin:        models.OriginPipeline,
		Department:    models.CategoryRoads.Department(),
		Status:        models.WorkOrderCreated,
		SLADeadline:   now.Add(24 * time.Hour),
		EstimatedCost: 7500,
		Materials:     models.CategoryRoads.Materials(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, override := range overrides {
		override(order)
	}
	return order
}

// AssignedTo assigns a work order to a contractor.
func AssignedTo(contractorID string) func(*models.WorkOrder) {
	return func(w *models.WorkOrder) {
		w.ContractorID = &contractorID
		w.Status = models.WorkOrderAssigned
	}
}
