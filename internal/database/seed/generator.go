// Package seed populates a fresh database with the municipal tenant, its
// contractor roster and, optionally, demo complaints.
package seed

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/civicflow/civicflow/internal/database"
	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/repository"
	"github.com/civicflow/civicflow/internal/util"
)

//go:embed dataset.yaml
var defaultDataset []byte

// ContractorSpec describes one roster entry.
type ContractorSpec struct {
	Name            string            `yaml:"name"`
	Specializations []models.Category `yaml:"specializations"`
	Rating          float64           `yaml:"rating"`
	Zone            string            `yaml:"zone"`
	Phone           string            `yaml:"phone"`
}

// Area is a neighbourhood demo complaints are placed in.
type Area struct {
	Name     string  `yaml:"name"`
	District string  `yaml:"district"`
	Lat      float64 `yaml:"lat"`
	Lon      float64 `yaml:"lon"`
}

// Dataset is the reference data a deployment starts with.
type Dataset struct {
	Tenant      string           `yaml:"tenant"`
	Contractors []ContractorSpec `yaml:"contractors"`
	Areas       []Area           `yaml:"areas"`
	// Templates are complaint descriptions; {area} is replaced with the
	// neighbourhood name.
	Templates []string `yaml:"templates"`
}

// ParseDataset decodes and validates a YAML dataset.
func ParseDataset(data []byte) (*Dataset, error) {
	var d Dataset
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing seed dataset: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// DefaultDataset returns the built-in Bangalore dataset.
func DefaultDataset() (*Dataset, error) {
	return ParseDataset(defaultDataset)
}

// Validate checks the dataset for problems.
func (d *Dataset) Validate() error {
	var errs []error
	if strings.TrimSpace(d.Tenant) == "" {
		errs = append(errs, errors.New("tenant name is required"))
	}
	for i, c := range d.Contractors {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("contractor %d: name is required", i))
		}
		if len(c.Specializations) == 0 {
			errs = append(errs, fmt.Errorf("contractor %q: at least one specialization is required", c.Name))
		}
		for _, s := range c.Specializations {
			if !s.Valid() {
				errs = append(errs, fmt.Errorf("contractor %q: unknown specialization %q", c.Name, s))
			}
		}
		if c.Rating < 0 || c.Rating > 5 {
			errs = append(errs, fmt.Errorf("contractor %q: rating must be between 0 and 5", c.Name))
		}
	}
	return errors.Join(errs...)
}

// Config configures the generator.
type Config struct {
	// DemoComplaints is how many submitted complaints to create.
	DemoComplaints int
	// Spread is how many days back demo complaints are spread over.
	Spread     time.Duration
	RandomSeed int64
}

// DefaultConfig returns a seed configuration without demo data.
func DefaultConfig() Config {
	return Config{Spread: 3 * 24 * time.Hour, RandomSeed: 2024}
}

// Result summarises a seed run.
type Result struct {
	TenantID    string `json:"tenant_id"`
	Contractors int    `json:"contractors"`
	Complaints  int    `json:"complaints"`
	// AlreadySeeded is set when the tenant existed and nothing was added.
	AlreadySeeded bool `json:"already_seeded"`
}

// Generator writes a dataset into the database.
type Generator struct {
	db          *sql.DB
	data        *Dataset
	cfg         Config
	rng         *rand.Rand
	clock       util.Clock
	tenants     *repository.TenantRepository
	contractors *repository.ContractorRepository
	complaints  *repository.ComplaintRepository
}

// NewGenerator creates a generator for data.
func NewGenerator(db *sql.DB, data *Dataset, cfg Config, clock util.Clock) *Generator {
	if clock == nil {
		clock = util.SystemClock{}
	}
	return &Generator{
		db:          db,
		data:        data,
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(cfg.RandomSeed)),
		clock:       clock,
		tenants:     repository.NewTenantRepository(db),
		contractors: repository.NewContractorRepository(db),
		complaints:  repository.NewComplaintRepository(db),
	}
}

// Generate seeds the tenant and contractors once. Demo complaints are
// added on every call. Contractors start with no workload since they
// hold no active work orders.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	slog.Info("starting seed data generation", "tenant", g.data.Tenant, "demo_complaints", g.cfg.DemoComplaints)

	result := &Result{}
	err := database.WithTx(ctx, g.db, func(tx *sql.Tx) error {
		tenant, err := g.tenants.GetByName(ctx, tx, g.data.Tenant)
		switch {
		case err == nil:
			result.AlreadySeeded = true
		case errors.Is(err, models.ErrNotFound):
			if tenant, err = g.createTenant(ctx, tx); err != nil {
				return fmt.Errorf("creating tenant: %w", err)
			}
			if result.Contractors, err = g.createContractors(ctx, tx, tenant.ID); err != nil {
				return fmt.Errorf("creating contractors: %w", err)
			}
		default:
			return err
		}
		result.TenantID = tenant.ID

		if result.Complaints, err = g.createComplaints(ctx, tx, tenant.ID); err != nil {
			return fmt.Errorf("creating demo complaints: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("seed data generation complete",
		"tenant", result.TenantID,
		"contractors", result.Contractors,
		"complaints", result.Complaints,
		"already_seeded", result.AlreadySeeded,
	)
	return result, nil
}

func (g *Generator) createTenant(ctx context.Context, tx *sql.Tx) (*models.Tenant, error) {
	t := &models.Tenant{ID: util.NewID(), Name: g.data.Tenant, CreatedAt: g.clock.Now()}
	return t, g.tenants.Create(ctx, tx, t)
}

func (g *Generator) createContractors(ctx context.Context, tx *sql.Tx, tenantID string) (int, error) {
	for _, spec := range g.data.Contractors {
		c := &models.Contractor{
			ID:              util.NewID(),
			TenantID:        &tenantID,
			Name:            spec.Name,
			Specializations: spec.Specializations,
			Rating:          spec.Rating,
			Zone:            spec.Zone,
			Phone:           spec.Phone,
			CreatedAt:       g.clock.Now(),
		}
		if err := g.contractors.Create(ctx, tx, c); err != nil {
			return 0, fmt.Errorf("inserting contractor %s: %w", spec.Name, err)
		}
	}
	slog.Debug("contractors generated", "count", len(g.data.Contractors))
	return len(g.data.Contractors), nil
}

// createComplaints stores demo complaints in status submitted. They are
// classified by the pipeline on the next backfill.
func (g *Generator) createComplaints(ctx context.Context, tx *sql.Tx, tenantID string) (int, error) {
	if g.cfg.DemoComplaints <= 0 || len(g.data.Areas) == 0 || len(g.data.Templates) == 0 {
		return 0, nil
	}
	now := g.clock.Now()
	for i := 0; i < g.cfg.DemoComplaints; i++ {
		c := g.demoComplaint(tenantID, now)
		if err := g.complaints.Create(ctx, tx, c); err != nil {
			return i, fmt.Errorf("inserting complaint %s: %w", c.TrackingCode, err)
		}
	}
	return g.cfg.DemoComplaints, nil
}

func (g *Generator) demoComplaint(tenantID string, now time.Time) *models.Complaint {
	area := g.data.Areas[g.rng.Intn(len(g.data.Areas))]
	template := g.data.Templates[g.rng.Intn(len(g.data.Templates))]
	given := GivenNames[g.rng.Intn(len(GivenNames))]
	surname := Surnames[g.rng.Intn(len(Surnames))]

	// Jitter of roughly a kilometre keeps neighbouring complaints in the
	// same two-decimal cell most of the time.
	lat := area.Lat + (g.rng.Float64()-0.5)*0.01
	lon := area.Lon + (g.rng.Float64()-0.5)*0.01

	var age time.Duration
	if g.cfg.Spread > 0 {
		age = time.Duration(g.rng.Int63n(int64(g.cfg.Spread)))
	}
	created := now.Add(-age).Truncate(time.Second)

	return &models.Complaint{
		ID:           util.NewID(),
		TenantID:     &tenantID,
		TrackingCode: util.NewTrackingCode(),
		CitizenEmail: strings.ToLower(given+"."+surname) + "@example.in",
		CitizenName:  given + " " + surname,
		Description:  strings.ReplaceAll(template, "{area}", area.Name),
		Latitude:     &lat,
		Longitude:    &lon,
		Location: models.Location{
			Address:  area.Name + ", Bangalore",
			District: area.District,
			City:     "Bangalore",
			State:    "Karnataka",
		},
		Status:    models.ComplaintStatusSubmitted,
		CreatedAt: created,
		UpdatedAt: created,
	}
}
