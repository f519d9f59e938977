package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/civicflow/civicflow/internal/config"
	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/services/admin"
	"github.com/civicflow/civicflow/internal/services/briefing"
	"github.com/civicflow/civicflow/internal/services/complaints"
	briefviews "github.com/civicflow/civicflow/internal/tui/views/briefing"
	cmplviews "github.com/civicflow/civicflow/internal/tui/views/complaints"
	ctrviews "github.com/civicflow/civicflow/internal/tui/views/contractors"
	woviews "github.com/civicflow/civicflow/internal/tui/views/workorders"
	"github.com/civicflow/civicflow/internal/util"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// MaxContentWidth is the maximum width for content display
const MaxContentWidth = 120

// chromeHeight is the rows taken by header, alert bar and footer.
const chromeHeight = 6

// Module represents a view module in the application.
type Module string

const (
	ModuleDashboard   Module = "dashboard"
	ModuleComplaints  Module = "complaints"
	ModuleWorkOrders  Module = "workorders"
	ModuleContractors Module = "contractors"
	ModuleBriefing    Module = "briefing"
	ModuleHelp        Module = "help"

	moduleQuit Module = "quit"
)

// Services are the operations the console drives.
type Services struct {
	Complaints *complaints.Service
	Admin      *admin.Service
	// Briefings may be nil when briefings are disabled.
	Briefings *briefing.Generator
}

// App is the main Bubble Tea application model.
type App struct {
	// Dependencies
	config   *config.Config
	clock    util.Clock
	services Services

	// Views
	queueView    *cmplviews.QueueView
	intakeForm   *cmplviews.IntakeForm
	boardView    *woviews.BoardView
	rosterView   *ctrviews.RosterView
	briefingView *briefviews.View

	// UI state
	theme       *Theme
	keys        KeyMap
	width       int
	height      int
	ready       bool
	quitting    bool
	showConfirm bool

	// Current view
	currentModule  Module
	previousModule Module
	showDetail     bool
	showForm       bool
	searchMode     bool
	searchInput    string

	alerts []Alert

	// Dashboard figures, refreshed on entry and on r.
	analytics   *models.Analytics
	performance *models.Performance
}

// Alert represents a console alert.
type Alert struct {
	Level   AlertLevel
	Message string
	Time    time.Time
}

// AlertLevel indicates the severity of an alert.
type AlertLevel int

const (
	AlertInfo AlertLevel = iota
	AlertWarning
	AlertCritical
)

// tickMsg is sent periodically to update the UI.
type tickMsg time.Time

type dashboardMsg struct {
	analytics   *models.Analytics
	performance *models.Performance
	err         error
}

type viewLoadedMsg struct {
	module Module
	err    error
}

type detailLoadedMsg struct {
	err error
}

type complaintFiledMsg struct {
	complaint *models.Complaint
	err       error
}

type workOrderAdvancedMsg struct {
	order *models.WorkOrder
	err   error
}

type reconciledMsg struct {
	fixed int
	err   error
}

type briefingGeneratedMsg struct {
	err error
}

// New creates a new App instance.
func New(cfg *config.Config, services Services, clock util.Clock) *App {
	theme := NewTheme(cfg.Display.ColorScheme)
	palette := theme.Palette()

	queueView := cmplviews.NewQueueView(services.Admin, services.Complaints)
	queueView.SetPalette(palette)
	queueView.SetNow(clock.Now())

	boardView := woviews.NewBoardView(services.Admin)
	boardView.SetPalette(palette)
	boardView.SetNow(clock.Now())

	rosterView := ctrviews.NewRosterView(services.Admin)
	rosterView.SetPalette(palette)

	briefingView := briefviews.NewView(services.Briefings)
	briefingView.SetPalette(palette)

	return &App{
		config:        cfg,
		clock:         clock,
		services:      services,
		queueView:     queueView,
		boardView:     boardView,
		rosterView:    rosterView,
		briefingView:  briefingView,
		theme:         theme,
		keys:          DefaultKeyMap(),
		currentModule: ModuleDashboard,
		alerts:        []Alert{},
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tickCmd(),
		a.loadDashboard(),
	)
}

// tickCmd returns a command that sends tick messages.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.resize()
		return a, nil

	case tickMsg:
		now := a.clock.Now()
		a.queueView.SetNow(now)
		a.boardView.SetNow(now)
		return a, tickCmd()

	case dashboardMsg:
		if msg.err != nil {
			a.AddAlert(AlertWarning, "Failed to load dashboard: "+msg.err.Error())
			return a, nil
		}
		a.analytics = msg.analytics
		a.performance = msg.performance
		return a, nil

	case viewLoadedMsg:
		if msg.err != nil {
			a.AddAlert(AlertWarning, fmt.Sprintf("Failed to load %s: %s", msg.module, msg.err))
		}
		return a, nil

	case detailLoadedMsg:
		if msg.err != nil {
			a.showDetail = false
			a.AddAlert(AlertWarning, "Failed to load complaint: "+msg.err.Error())
		}
		return a, nil

	case complaintFiledMsg:
		if msg.err != nil {
			if a.intakeForm != nil {
				a.intakeForm.Fail(msg.err)
			}
			return a, nil
		}
		a.showForm = false
		a.intakeForm = nil
		a.AddAlert(AlertInfo, fmt.Sprintf("Complaint %s filed (%s)", msg.complaint.TrackingCode, msg.complaint.Status))
		return a, tea.Batch(a.loadModule(ModuleComplaints), a.loadDashboard())

	case workOrderAdvancedMsg:
		if msg.err != nil {
			a.AddAlert(AlertWarning, "Work order not updated: "+msg.err.Error())
			return a, nil
		}
		a.showDetail = false
		a.AddAlert(AlertInfo, fmt.Sprintf("Work order %s is now %s", shortID(msg.order.ID), msg.order.Status))
		return a, tea.Batch(a.loadModule(ModuleWorkOrders), a.loadDashboard())

	case reconciledMsg:
		if msg.err != nil {
			a.AddAlert(AlertWarning, "Reconcile failed: "+msg.err.Error())
			return a, nil
		}
		a.AddAlert(AlertInfo, fmt.Sprintf("Reconciled %d contractor workload(s)", msg.fixed))
		return a, nil

	case briefingGeneratedMsg:
		if msg.err != nil {
			a.AddAlert(AlertWarning, "Briefing failed: "+msg.err.Error())
			return a, nil
		}
		a.AddAlert(AlertInfo, "Daily briefing generated")
		return a, nil
	}

	if a.currentModule == ModuleBriefing {
		return a, a.briefingView.Update(msg)
	}
	return a, nil
}

func (a *App) resize() {
	rows := a.height - chromeHeight - 10
	if rows < 3 {
		rows = 3
	}
	a.queueView.SetVisibleRows(rows)
	a.boardView.SetVisibleRows(rows)
	a.rosterView.SetVisibleRows(rows)
	a.briefingView.SetSize(min(a.width, MaxContentWidth), a.height-chromeHeight-6)
}

// handleKeyPress processes key press events.
func (a *App) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Modal first.
	if a.showConfirm {
		switch msg.String() {
		case "y", "Y", "enter":
			a.quitting = true
			return a, tea.Quit
		case "n", "N", "esc":
			a.showConfirm = false
			return a, nil
		}
		return a, nil
	}

	// Text entry consumes every key.
	if a.currentModule == ModuleComplaints && a.showForm {
		return a.handleFormKeys(msg)
	}
	if a.currentModule == ModuleComplaints && a.searchMode {
		return a.handleSearchKeys(msg)
	}

	if a.keys.IsFunctionKey(msg) {
		return a.switchModule(a.keys.FunctionKeyModule(msg))
	}

	if a.keys.IsQuit(msg) {
		a.showConfirm = true
		return a, nil
	}

	if a.keys.Back.Matches(msg) {
		if a.showDetail {
			a.showDetail = false
			return a, nil
		}
		if a.currentModule == ModuleHelp && a.previousModule != "" {
			a.currentModule = a.previousModule
			a.previousModule = ""
		}
		return a, nil
	}

	switch a.currentModule {
	case ModuleDashboard:
		if a.keys.Refresh.Matches(msg) {
			return a, a.loadDashboard()
		}
	case ModuleComplaints:
		return a.handleComplaintKeys(msg)
	case ModuleWorkOrders:
		return a.handleWorkOrderKeys(msg)
	case ModuleContractors:
		return a.handleRosterKeys(msg)
	case ModuleBriefing:
		return a.handleBriefingKeys(msg)
	}
	return a, nil
}

func (a *App) switchModule(module Module) (tea.Model, tea.Cmd) {
	switch module {
	case moduleQuit:
		a.showConfirm = true
		return a, nil
	case ModuleHelp:
		if a.currentModule != ModuleHelp {
			a.previousModule = a.currentModule
		}
		a.currentModule = ModuleHelp
		return a, nil
	case "":
		return a, nil
	}

	a.currentModule = module
	a.showDetail = false
	if module == ModuleDashboard {
		return a, a.loadDashboard()
	}
	return a, a.loadModule(module)
}

// handleComplaintKeys handles the complaint queue outside text entry.
func (a *App) handleComplaintKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.showDetail {
		return a, nil
	}

	switch {
	case a.keys.Up.Matches(msg):
		a.queueView.MoveUp()
	case a.keys.Down.Matches(msg):
		a.queueView.MoveDown()
	case a.keys.Select.Matches(msg):
		if a.queueView.SelectedComplaint() != nil {
			a.showDetail = true
			return a, a.loadDetail()
		}
	case a.keys.PageUp.Matches(msg):
		a.queueView.PrevPage()
		return a, a.loadModule(ModuleComplaints)
	case a.keys.PageDown.Matches(msg):
		a.queueView.NextPage()
		return a, a.loadModule(ModuleComplaints)
	case a.keys.Refresh.Matches(msg):
		return a, a.loadModule(ModuleComplaints)
	case a.keys.Search.Matches(msg), msg.String() == "s":
		a.searchMode = true
		a.searchInput = ""
	default:
		switch msg.String() {
		case "f":
			a.queueView.CycleStatus()
			return a, a.loadModule(ModuleComplaints)
		case "o":
			a.queueView.ToggleOpenOnly()
			return a, a.loadModule(ModuleComplaints)
		case "a":
			a.intakeForm = cmplviews.NewIntakeForm(a.theme.Palette())
			a.showForm = true
		}
	}
	return a, nil
}

// handleFormKeys handles key presses in the intake form.
func (a *App) handleFormKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.intakeForm.HandleKey(msg.String())

	if a.intakeForm.IsCancelled() {
		a.showForm = false
		a.intakeForm = nil
		return a, nil
	}
	if a.intakeForm.IsSubmitted() {
		input, err := a.intakeForm.GetData()
		if err != nil {
			a.intakeForm.Fail(err)
			return a, nil
		}
		return a, a.fileComplaint(input)
	}
	return a, nil
}

// handleSearchKeys handles key presses in search mode.
func (a *App) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "esc":
		a.searchMode = false
		a.searchInput = ""
		a.queueView.SetSearch("")
		return a, a.loadModule(ModuleComplaints)
	case "enter":
		a.searchMode = false
		a.queueView.SetSearch(a.searchInput)
		return a, a.loadModule(ModuleComplaints)
	case "backspace":
		if len(a.searchInput) > 0 {
			a.searchInput = a.searchInput[:len(a.searchInput)-1]
		}
	case "space":
		a.searchInput += " "
	default:
		if len(key) == 1 {
			a.searchInput += key
		}
	}
	return a, nil
}

func (a *App) handleWorkOrderKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case a.keys.Up.Matches(msg):
		a.boardView.MoveUp()
	case a.keys.Down.Matches(msg):
		a.boardView.MoveDown()
	case a.keys.Select.Matches(msg):
		if a.boardView.SelectedWorkOrder() != nil {
			a.showDetail = !a.showDetail
		}
	case a.keys.PageUp.Matches(msg):
		a.boardView.PrevPage()
		return a, a.loadModule(ModuleWorkOrders)
	case a.keys.PageDown.Matches(msg):
		a.boardView.NextPage()
		return a, a.loadModule(ModuleWorkOrders)
	case a.keys.Refresh.Matches(msg):
		return a, a.loadModule(ModuleWorkOrders)
	default:
		switch msg.String() {
		case "f":
			a.boardView.CycleStatus()
			return a, a.loadModule(ModuleWorkOrders)
		case "p":
			return a, a.advanceWorkOrder(models.WorkOrderInProgress)
		case "c":
			return a, a.advanceWorkOrder(models.WorkOrderCompleted)
		}
	}
	return a, nil
}

func (a *App) handleRosterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case a.keys.Up.Matches(msg):
		a.rosterView.MoveUp()
	case a.keys.Down.Matches(msg):
		a.rosterView.MoveDown()
	case a.keys.Refresh.Matches(msg):
		return a, a.loadModule(ModuleContractors)
	case msg.String() == "x" && a.rosterView.HasDrift():
		return a, func() tea.Msg {
			n, err := a.rosterView.Reconcile(context.Background())
			return reconciledMsg{fixed: n, err: err}
		}
	}
	return a, nil
}

func (a *App) handleBriefingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case a.keys.Refresh.Matches(msg):
		return a, a.loadModule(ModuleBriefing)
	case msg.String() == "g":
		return a, func() tea.Msg {
			return briefingGeneratedMsg{err: a.briefingView.Generate(context.Background())}
		}
	}
	return a, a.briefingView.Update(msg)
}

// loadModule loads the data behind a module's view.
func (a *App) loadModule(module Module) tea.Cmd {
	var load func(context.Context) error
	switch module {
	case ModuleComplaints:
		load = a.queueView.Load
	case ModuleWorkOrders:
		load = a.boardView.Load
	case ModuleContractors:
		load = a.rosterView.Load
	case ModuleBriefing:
		load = a.briefingView.Load
	default:
		return nil
	}
	if a.services.Admin == nil {
		return nil
	}
	return func() tea.Msg {
		return viewLoadedMsg{module: module, err: load(context.Background())}
	}
}

func (a *App) loadDetail() tea.Cmd {
	return func() tea.Msg {
		return detailLoadedMsg{err: a.queueView.LoadDetail(context.Background())}
	}
}

func (a *App) loadDashboard() tea.Cmd {
	if a.services.Admin == nil {
		return nil
	}
	return func() tea.Msg {
		ctx := context.Background()
		analytics, err := a.services.Admin.Analytics(ctx)
		if err != nil {
			return dashboardMsg{err: err}
		}
		performance, err := a.services.Admin.Performance(ctx)
		if err != nil {
			return dashboardMsg{err: err}
		}
		return dashboardMsg{analytics: analytics, performance: performance}
	}
}

// fileComplaint submits a phone-in complaint and runs it through the
// pipeline straight away.
func (a *App) fileComplaint(input complaints.SubmitInput) tea.Cmd {
	return func() tea.Msg {
		if a.services.Complaints == nil {
			return complaintFiledMsg{err: errors.New("complaint intake is not configured")}
		}
		ctx := context.Background()
		c, err := a.services.Complaints.Submit(ctx, input)
		if err != nil {
			return complaintFiledMsg{err: err}
		}
		pc, err := a.services.Complaints.Process(ctx, c.ID)
		if err != nil {
			return complaintFiledMsg{err: err}
		}
		return complaintFiledMsg{complaint: pc.Complaint}
	}
}

func (a *App) advanceWorkOrder(status models.WorkOrderStatus) tea.Cmd {
	return func() tea.Msg {
		wo, err := a.boardView.Advance(context.Background(), status)
		return workOrderAdvancedMsg{order: wo, err: err}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initializing..."
	}

	if a.quitting {
		return a.theme.Title.Render("CivicFlow console closing...")
	}

	var b strings.Builder

	b.WriteString(a.renderHeader())
	b.WriteString("\n")

	b.WriteString(a.renderAlertBar())
	b.WriteString("\n")

	contentHeight := ContentHeight(a.height, chromeHeight)
	if a.showConfirm {
		b.WriteString(a.renderConfirmDialog(contentHeight))
	} else {
		b.WriteString(a.renderContent(contentHeight))
	}

	b.WriteString("\n")
	b.WriteString(a.renderFooter())

	return b.String()
}

// renderHeader renders the top header bar.
func (a *App) renderHeader() string {
	title := fmt.Sprintf("CIVICFLOW OPERATIONS CONSOLE v%s", Version)
	if GetBreakpoint(a.width) == BreakpointNarrow {
		title = "CIVICFLOW"
	}

	info := a.config.Service.Name
	if a.analytics != nil {
		open := a.analytics.Total - a.analytics.ByStatus[string(models.ComplaintStatusResolved)] -
			a.analytics.ByStatus[string(models.ComplaintStatusClosed)] -
			a.analytics.ByStatus[string(models.ComplaintStatusRejected)]
		info = fmt.Sprintf("%s | OPEN: %d", info, open)
	}

	spacing := a.width - lipgloss.Width(title) - lipgloss.Width(info) - 2
	if spacing < 1 {
		spacing = 1
	}

	header := a.theme.Header.Render(title) +
		strings.Repeat(" ", spacing) +
		a.theme.Header.Render(info)

	return header + "\n" + a.theme.DrawDoubleLine(a.width)
}

// renderAlertBar renders the clock and the newest alert.
func (a *App) renderAlertBar() string {
	timeStr := a.clock.Now().Format(a.config.Display.DateFormat + " " + a.config.Display.TimeFormat)

	var alertText string
	if len(a.alerts) > 0 {
		alert := a.alerts[0]
		switch alert.Level {
		case AlertCritical:
			alertText = a.theme.AlertCrit.Render("CRITICAL: " + alert.Message)
		case AlertWarning:
			alertText = a.theme.AlertWarn.Render("WARNING: " + alert.Message)
		default:
			alertText = a.theme.Alert.Render("INFO: " + alert.Message)
		}
	} else {
		alertText = a.theme.Muted.Render("No alerts")
	}

	return a.theme.Value.Render(timeStr) + a.theme.StatusDivider.Render() + alertText
}

// renderContent renders the main content area based on current module.
func (a *App) renderContent(height int) string {
	contentWidth := ContentWidth(a.width, 40, MaxContentWidth)

	style := lipgloss.NewStyle().
		Width(a.width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Top)

	contentStyle := lipgloss.NewStyle().Width(contentWidth)

	return style.Render(contentStyle.Render(a.moduleContent(contentWidth, height)))
}

func (a *App) moduleContent(width, height int) string {
	switch a.currentModule {
	case ModuleComplaints:
		return a.renderComplaints(width, height)
	case ModuleWorkOrders:
		if a.showDetail {
			return a.boardView.RenderDetail(width)
		}
		return a.boardView.Render(width, height)
	case ModuleContractors:
		return a.rosterView.Render(width, height)
	case ModuleBriefing:
		return a.briefingView.Render()
	case ModuleHelp:
		return a.renderHelp()
	default:
		return a.renderDashboard(width)
	}
}

func (a *App) renderComplaints(width, height int) string {
	if a.showForm && a.intakeForm != nil {
		return a.intakeForm.Render(width)
	}
	if a.showDetail {
		return a.queueView.RenderDetail(width)
	}

	var searchBar string
	if a.searchMode {
		searchBar = a.theme.Label.Render("SEARCH: ") +
			a.theme.Accent.Render(a.searchInput) +
			a.theme.Accent.Render("_") + "\n\n"
	}
	return searchBar + a.queueView.Render(width, height)
}

// renderDashboard renders complaint volume and SLA delivery.
func (a *App) renderDashboard(width int) string {
	var volume strings.Builder
	volume.WriteString(a.theme.Subtitle.Render("COMPLAINTS"))
	volume.WriteString("\n")
	if a.analytics == nil {
		volume.WriteString(a.theme.Muted.Render("  Loading..."))
		volume.WriteString("\n")
	} else {
		volume.WriteString(fmt.Sprintf("  Total:       %d\n", a.analytics.Total))
		for _, level := range []models.RiskLevel{models.RiskCritical, models.RiskHigh, models.RiskMedium, models.RiskLow} {
			volume.WriteString("  " + PadRight(a.theme.Risk(level)+":", 13) + fmt.Sprintf("%d\n", a.analytics.ByRiskLevel[string(level)]))
		}
		volume.WriteString("\n")
		volume.WriteString(a.theme.Subtitle.Render("BY STATUS"))
		volume.WriteString("\n")
		for _, kv := range sortedCounts(a.analytics.ByStatus) {
			volume.WriteString(fmt.Sprintf("  %-20s %d\n", kv.key, kv.n))
		}
	}

	var delivery strings.Builder
	delivery.WriteString(a.theme.Subtitle.Render("SLA DELIVERY"))
	delivery.WriteString("\n")
	if a.performance == nil {
		delivery.WriteString(a.theme.Muted.Render("  Loading..."))
		delivery.WriteString("\n")
	} else {
		p := a.performance
		delivery.WriteString(fmt.Sprintf("  Measured:    %d\n", p.TotalMeasured))
		delivery.WriteString(fmt.Sprintf("  Breaches:    %d\n", p.SLABreaches))
		delivery.WriteString("  Breach rate: " + a.theme.LoadBar(p.SLABreachRate, 1, 16) + fmt.Sprintf(" %.0f%%\n", p.SLABreachRate*100))
		delivery.WriteString(fmt.Sprintf("  Escalations: %d\n", p.TotalEscalations))
		if len(p.Contractors) > 0 {
			delivery.WriteString("\n")
			delivery.WriteString(a.theme.Subtitle.Render("TOP CONTRACTORS"))
			delivery.WriteString("\n")
			for i, c := range p.Contractors {
				if i == 5 {
					break
				}
				delivery.WriteString(fmt.Sprintf("  %-18s %3d done %5.1fh\n", Truncate(c.Name, 18), c.Completed, c.AvgResolutionHours))
			}
		}
	}

	if sim, ok := a.clock.(*util.SimClock); ok {
		status := "RUNNING"
		if sim.IsPaused() {
			status = "PAUSED"
		}
		delivery.WriteString("\n")
		delivery.WriteString(a.theme.Subtitle.Render("SIMULATION"))
		delivery.WriteString("\n")
		delivery.WriteString(fmt.Sprintf("  Status:     %s\n", status))
		delivery.WriteString(fmt.Sprintf("  Time Scale: %.0fx\n", sim.TimeScale()))
	}

	var b strings.Builder
	b.WriteString(a.theme.Title.Render("═══ OPERATIONS OVERVIEW ═══"))
	b.WriteString("\n\n")
	b.WriteString(SideBySide(volume.String(), delivery.String(), width, 4))
	b.WriteString("\n")
	b.WriteString(a.theme.Muted.Render("r:Refresh"))
	return b.String()
}

type count struct {
	key string
	n   int
}

func sortedCounts(m map[string]int) []count {
	out := make([]count, 0, len(m))
	for k, n := range m {
		out = append(out, count{k, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].key < out[j].key
	})
	return out
}

// renderHelp renders the help screen.
func (a *App) renderHelp() string {
	var b strings.Builder

	b.WriteString(a.theme.Title.Render("═══ HELP ═══"))
	b.WriteString("\n\n")

	b.WriteString(a.theme.Subtitle.Render("NAVIGATION"))
	b.WriteString("\n\n")

	navItems := [][2]string{
		{"F1", "Help"},
		{"F2", "Operations dashboard"},
		{"F3", "Complaint queue"},
		{"F4", "Work orders"},
		{"F5", "Contractor roster"},
		{"F6", "Daily briefing"},
		{"F10", "Quit"},
	}
	for _, item := range navItems {
		b.WriteString(a.theme.Primary.Render(fmt.Sprintf("    %-8s  %s", item[0], item[1])))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(a.theme.Subtitle.Render("CONTROLS"))
	b.WriteString("\n\n")

	ctrlItems := [][2]string{
		{"Up/Down", "Navigate"},
		{"Enter", "Open detail"},
		{"Esc", "Back/Cancel"},
		{"/", "Search complaints"},
		{"a", "File a phone-in complaint"},
		{"f", "Cycle status filter"},
		{"p / c", "Start or complete a work order"},
		{"x", "Reconcile contractor workloads"},
		{"g", "Generate the daily briefing"},
		{"PgUp/Dn", "Page navigation"},
	}
	for _, item := range ctrlItems {
		b.WriteString(a.theme.Primary.Render(fmt.Sprintf("    %-8s  %s", item[0], item[1])))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(a.theme.Muted.Render("Press Esc to return"))
	return b.String()
}

// renderConfirmDialog renders the quit confirmation dialog.
func (a *App) renderConfirmDialog(height int) string {
	dialog := a.theme.Box.Render(
		a.theme.Title.Render("CONFIRM EXIT") + "\n\n" +
			a.theme.Base.Render("Close the operations console?") + "\n\n" +
			a.theme.Label.Render("[Y]es  [N]o"),
	)

	style := lipgloss.NewStyle().
		Width(a.width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center)

	return style.Render(dialog)
}

// renderFooter renders the bottom status bar.
func (a *App) renderFooter() string {
	return a.theme.DrawHorizontalLine(a.width) + "\n" + a.theme.Footer.Render(a.keys.StatusBarHelp(a.width))
}

// AddAlert adds a new alert to the display.
func (a *App) AddAlert(level AlertLevel, message string) {
	a.alerts = append([]Alert{{
		Level:   level,
		Message: message,
		Time:    a.clock.Now(),
	}}, a.alerts...)

	if len(a.alerts) > 10 {
		a.alerts = a.alerts[:10]
	}
}

// ClearAlerts removes all alerts.
func (a *App) ClearAlerts() {
	a.alerts = []Alert{}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}

// Run starts the console and blocks until it exits or ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, services Services, clock util.Clock) error {
	p := tea.NewProgram(New(cfg, services, clock), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
