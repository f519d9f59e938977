package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/civicflow/civicflow/internal/config"
	"github.com/civicflow/civicflow/internal/pipeline"
	"github.com/civicflow/civicflow/internal/repository"
	"github.com/civicflow/civicflow/internal/services/admin"
	"github.com/civicflow/civicflow/internal/services/briefing"
	"github.com/civicflow/civicflow/internal/services/complaints"
	"github.com/civicflow/civicflow/internal/testutil"
	"github.com/civicflow/civicflow/internal/util"
)

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

// newTestServices wires the console services over a migrated in-memory
// database with a paused simulation clock.
func newTestServices(t *testing.T) (*testutil.TestDB, Services, *util.SimClock) {
	t.Helper()

	db := testutil.NewMigratedDB(t)
	clock := util.NewSimClock(testNow, 1.0)
	clock.Pause()

	stages := pipeline.DefaultStages(pipeline.Deps{
		DB:          db.DB,
		Contractors: repository.NewContractorRepository(db.DB),
		WorkOrders:  repository.NewWorkOrderRepository(db.DB),
		Clock:       clock,
	})
	return db, Services{
		Complaints: complaints.NewService(db.DB, stages, complaints.WithClock(clock)),
		Admin:      admin.NewService(db.DB, admin.WithClock(clock)),
		Briefings:  briefing.NewGenerator(db.DB, briefing.WithClock(clock), briefing.WithLocation(time.UTC)),
	}, clock
}

// newTestApp creates an App sized to 120x40 and marked ready.
func newTestApp(t *testing.T) (*App, *testutil.TestDB) {
	t.Helper()

	db, services, clock := newTestServices(t)
	app := New(config.Default(), services, clock)
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return app, db
}

// run executes cmd and feeds every resulting message back into the app,
// expanding batches.
func run(app *App, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			run(app, c)
		}
		return
	}
	if _, ok := msg.(tickMsg); ok {
		return
	}
	_, next := app.Update(msg)
	run(app, next)
}

// keyMsg creates a tea.KeyMsg for a regular character key.
func keyMsg(key string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

// specialKeyMsg creates a tea.KeyMsg for a special key type.
func specialKeyMsg(keyType tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: keyType}
}

// press sends a key and runs whatever command it produced.
func press(app *App, msg tea.KeyMsg) {
	_, cmd := app.Update(msg)
	run(app, cmd)
}

// typeText sends each rune as its own key press.
func typeText(app *App, s string) {
	for _, r := range s {
		if r == ' ' {
			press(app, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
			continue
		}
		press(app, keyMsg(string(r)))
	}
}
