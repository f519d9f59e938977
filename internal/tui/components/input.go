package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// defaultLabelWidth is the label column used by Render.
const defaultLabelWidth = 16

// Input is a single-line text input.
type Input struct {
	label       string
	value       string
	placeholder string
	width       int
	focused     bool
	cursorPos   int
	maxLength   int
	required    bool
	err         string
	palette     Palette
}

// NewInput creates a new input field.
func NewInput(label string) *Input {
	return &Input{
		label:     label,
		width:     20,
		maxLength: 100,
		palette:   DefaultPalette,
	}
}

// SetValue sets the input value.
func (i *Input) SetValue(v string) *Input {
	i.value = v
	i.cursorPos = len(v)
	return i
}

// SetPlaceholder sets the placeholder text.
func (i *Input) SetPlaceholder(p string) *Input {
	i.placeholder = p
	return i
}

// SetWidth sets the input width.
func (i *Input) SetWidth(w int) *Input {
	i.width = w
	return i
}

// SetMaxLength sets the maximum input length.
func (i *Input) SetMaxLength(m int) *Input {
	i.maxLength = m
	return i
}

// SetRequired marks the field as required.
func (i *Input) SetRequired(r bool) *Input {
	i.required = r
	return i
}

// SetError sets an error message.
func (i *Input) SetError(e string) *Input {
	i.err = e
	return i
}

// SetPalette sets the render colors.
func (i *Input) SetPalette(p Palette) *Input {
	i.palette = p
	return i
}

// Focus sets the focus state.
func (i *Input) Focus(focused bool) {
	i.focused = focused
	if focused && i.cursorPos > len(i.value) {
		i.cursorPos = len(i.value)
	}
}

// IsFocused returns the focus state.
func (i *Input) IsFocused() bool {
	return i.focused
}

// Value returns the current value.
func (i *Input) Value() string {
	return i.value
}

// Label returns the field label.
func (i *Input) Label() string {
	return i.label
}

// HandleKey handles a key press.
func (i *Input) HandleKey(key string) {
	if !i.focused {
		return
	}

	switch key {
	case "backspace":
		if len(i.value) > 0 && i.cursorPos > 0 {
			i.value = i.value[:i.cursorPos-1] + i.value[i.cursorPos:]
			i.cursorPos--
		}
	case "delete":
		if i.cursorPos < len(i.value) {
			i.value = i.value[:i.cursorPos] + i.value[i.cursorPos+1:]
		}
	case "left":
		if i.cursorPos > 0 {
			i.cursorPos--
		}
	case "right":
		if i.cursorPos < len(i.value) {
			i.cursorPos++
		}
	case "home", "ctrl+a":
		i.cursorPos = 0
	case "end", "ctrl+e":
		i.cursorPos = len(i.value)
	case "space":
		i.insert(" ")
	default:
		if len(key) == 1 {
			i.insert(key)
		}
	}
}

func (i *Input) insert(s string) {
	if len(i.value) >= i.maxLength {
		return
	}
	i.value = i.value[:i.cursorPos] + s + i.value[i.cursorPos:]
	i.cursorPos += len(s)
}

// Validate validates the input.
func (i *Input) Validate() bool {
	if i.required && strings.TrimSpace(i.value) == "" {
		i.err = "Required"
		return false
	}
	i.err = ""
	return true
}

// Render renders the input with the default label width.
func (i *Input) Render() string {
	return i.RenderWithLabelWidth(defaultLabelWidth)
}

// RenderWithLabelWidth renders the input with a label column of
// labelWidth cells. Zero omits the label.
func (i *Input) RenderWithLabelWidth(labelWidth int) string {
	valueStyle := lipgloss.NewStyle().Foreground(i.palette.Primary)
	focusStyle := lipgloss.NewStyle().Foreground(i.palette.Accent)
	errStyle := lipgloss.NewStyle().Foreground(i.palette.Error)
	mutedStyle := lipgloss.NewStyle().Foreground(i.palette.Muted)

	var display string
	switch {
	case i.value == "" && i.placeholder != "" && !i.focused:
		display = mutedStyle.Render(i.placeholder)
	case i.focused:
		display = focusStyle.Render(i.value[:i.cursorPos] + "_" + i.value[i.cursorPos:])
	default:
		display = valueStyle.Render(i.value)
	}

	displayLen := len(i.value)
	if i.focused {
		displayLen++
	}
	if displayLen < i.width {
		display += strings.Repeat(" ", i.width-displayLen)
	}

	result := display
	if labelWidth > 0 {
		result = renderLabel(i.label, i.required, labelWidth, i.palette) + " " + display
	}
	if i.err != "" {
		result += " " + errStyle.Render(i.err)
	}
	return result
}

func renderLabel(label string, required bool, width int, p Palette) string {
	if required {
		label += "*"
	}
	return lipgloss.NewStyle().Foreground(p.Secondary).Width(width).Render(label + ":")
}

// FormField is a focusable form component.
type FormField interface {
	Focus(bool)
	IsFocused() bool
	HandleKey(string)
	Render() string
	RenderWithLabelWidth(int) string
}

var _ FormField = (*Input)(nil)

// Form is a vertical stack of fields with keyboard navigation.
type Form struct {
	title      string
	fields     []FormField
	focusIndex int
	submitted  bool
	cancelled  bool
	err        string
	palette    Palette
}

// NewForm creates a new form.
func NewForm(title string) *Form {
	return &Form{
		title:   title,
		palette: DefaultPalette,
	}
}

// SetPalette sets the render colors.
func (f *Form) SetPalette(p Palette) *Form {
	f.palette = p
	return f
}

// AddField adds a field to the form.
func (f *Form) AddField(field FormField) *Form {
	f.fields = append(f.fields, field)
	if len(f.fields) == 1 {
		field.Focus(true)
	}
	return f
}

// HandleKey handles form navigation.
func (f *Form) HandleKey(key string) {
	switch key {
	case "tab", "down":
		f.nextField()
	case "shift+tab", "up":
		f.prevField()
	case "ctrl+s":
		f.submitted = true
	case "esc":
		f.cancelled = true
	case "enter":
		if f.focusIndex == len(f.fields)-1 {
			f.submitted = true
		} else {
			f.nextField()
		}
	default:
		if f.focusIndex < len(f.fields) {
			f.fields[f.focusIndex].HandleKey(key)
		}
	}
}

func (f *Form) nextField() {
	if len(f.fields) == 0 {
		return
	}
	f.fields[f.focusIndex].Focus(false)
	f.focusIndex = (f.focusIndex + 1) % len(f.fields)
	f.fields[f.focusIndex].Focus(true)
}

func (f *Form) prevField() {
	if len(f.fields) == 0 {
		return
	}
	f.fields[f.focusIndex].Focus(false)
	f.focusIndex--
	if f.focusIndex < 0 {
		f.focusIndex = len(f.fields) - 1
	}
	f.fields[f.focusIndex].Focus(true)
}

// IsSubmitted returns true if form was submitted.
func (f *Form) IsSubmitted() bool {
	return f.submitted
}

// IsCancelled returns true if form was cancelled.
func (f *Form) IsCancelled() bool {
	return f.cancelled
}

// Reopen clears the submitted and cancelled flags, e.g. after a failed
// save so the operator can correct the input.
func (f *Form) Reopen() {
	f.submitted = false
	f.cancelled = false
}

// SetError sets an error message.
func (f *Form) SetError(err string) {
	f.err = err
}

// Render renders the form at full width.
func (f *Form) Render() string {
	return f.RenderResponsive(0)
}

// RenderResponsive renders the form for a terminal width. Narrow
// terminals get shorter labels and help. Zero means unconstrained.
func (f *Form) RenderResponsive(width int) string {
	titleStyle := lipgloss.NewStyle().Foreground(f.palette.Accent).Bold(true)
	helpStyle := lipgloss.NewStyle().Foreground(f.palette.Secondary)
	errStyle := lipgloss.NewStyle().Foreground(f.palette.Error)

	narrow := width > 0 && width < 60
	labelWidth := defaultLabelWidth
	if narrow {
		labelWidth = 10
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("=== %s ===", f.title)))
	b.WriteString("\n\n")

	for _, field := range f.fields {
		b.WriteString(field.RenderWithLabelWidth(labelWidth))
		b.WriteString("\n")
	}

	if f.err != "" {
		b.WriteString("\n")
		b.WriteString(errStyle.Render("Error: " + f.err))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if narrow {
		b.WriteString(helpStyle.Render("Tab:Next  Ctrl+S:Save  Esc:Cancel"))
	} else {
		b.WriteString(helpStyle.Render("Tab/Down:Next  Shift+Tab/Up:Prev  Ctrl+S:Save  Esc:Cancel"))
	}
	return b.String()
}
