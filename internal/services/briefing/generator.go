// Package briefing produces the daily officer briefing: a snapshot of the
// day's complaint figures plus a short narrative.
package briefing

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/civicflow/civicflow/internal/collab"
	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/repository"
	"github.com/civicflow/civicflow/internal/util"
)

// Generator builds and stores daily briefings.
type Generator struct {
	analytics *repository.AnalyticsRepository
	briefings *repository.BriefingRepository
	tenants   *repository.TenantRepository

	narrator collab.Narrator
	clock    util.Clock
	location *time.Location
	logger   *slog.Logger
	timeout  time.Duration
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock sets the clock.
func WithClock(c util.Clock) Option { return func(g *Generator) { g.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(g *Generator) { g.logger = l } }

// WithNarrator sets the collaborator that writes the narrative.
func WithNarrator(n collab.Narrator) Option { return func(g *Generator) { g.narrator = n } }

// WithLocation sets the time zone that defines "today".
func WithLocation(loc *time.Location) Option { return func(g *Generator) { g.location = loc } }

// WithTimeout bounds the narrator call.
func WithTimeout(t time.Duration) Option { return func(g *Generator) { g.timeout = t } }

// NewGenerator creates a briefing generator.
func NewGenerator(db *sql.DB, opts ...Option) *Generator {
	g := &Generator{
		analytics: repository.NewAnalyticsRepository(db),
		briefings: repository.NewBriefingRepository(db),
		tenants:   repository.NewTenantRepository(db),
		clock:     util.SystemClock{},
		location:  time.Local,
		logger:    slog.Default(),
		timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate collects today's figures, writes the narrative and stores the
// briefing.
func (g *Generator) Generate(ctx context.Context) (*models.DailyBriefing, error) {
	now := g.clock.Now().In(g.location)
	stats, err := g.analytics.BriefingStats(ctx, util.StartOfDay(now), now)
	if err != nil {
		return nil, err
	}

	b := &models.DailyBriefing{
		ID:            util.NewID(),
		BriefDate:     now,
		BriefingStats: *stats,
		Narrative:     g.narrate(ctx, *stats),
		CreatedAt:     now,
	}
	if t, err := g.tenants.First(ctx, nil); err == nil {
		b.TenantID = &t.ID
	}
	if err := g.briefings.Create(ctx, nil, b); err != nil {
		return nil, fmt.Errorf("storing briefing: %w", err)
	}

	g.logger.Info("daily briefing generated",
		"date", util.FormatDate(now),
		"new", stats.NewComplaints,
		"resolved", stats.ResolvedToday,
		"sla_at_risk", stats.SLAAtRisk)
	return b, nil
}

// Latest returns the most recent briefing.
func (g *Generator) Latest(ctx context.Context) (*models.DailyBriefing, error) {
	return g.briefings.Latest(ctx, nil)
}

func (g *Generator) narrate(ctx context.Context, stats models.BriefingStats) string {
	if g.narrator == nil {
		return FallbackNarrative(stats)
	}
	text, err := collab.Call(ctx, g.timeout, func(ctx context.Context) (string, error) {
		return g.narrator.Narrate(ctx, stats)
	})
	if text = strings.TrimSpace(text); err != nil || text == "" {
		g.logger.Warn("briefing narrator unavailable, using fallback", "error", err)
		return FallbackNarrative(stats)
	}
	return text
}

// FallbackNarrative writes the briefing prose without a collaborator.
func FallbackNarrative(s models.BriefingStats) string {
	parts := []string{
		fmt.Sprintf("Good morning. As of today, %d new complaints have been submitted and %d have been resolved.",
			s.NewComplaints, s.ResolvedToday),
		fmt.Sprintf("There are currently %d open complaints in the system.", s.TotalOpen),
	}
	if s.SLAAtRisk > 0 {
		parts = append(parts, fmt.Sprintf(
			"ATTENTION: %d complaint(s) are at risk of SLA breach within the next 12 hours and require immediate action.", s.SLAAtRisk))
	}
	if s.EscalationsToday > 0 {
		parts = append(parts, fmt.Sprintf("%d escalation(s) were raised today due to SLA breaches.", s.EscalationsToday))
	}
	if s.ClustersDetected > 0 {
		parts = append(parts, fmt.Sprintf("%d grouped work order(s) were created for clustered issues.", s.ClustersDetected))
	}
	parts = append(parts, "Overdue complaints have been reassigned automatically and clustered issues grouped into shared work orders. No manual intervention is required unless flagged above.")
	return strings.Join(parts, " ")
}
