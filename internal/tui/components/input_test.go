package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func typeKeys(in interface{ HandleKey(string) }, keys ...string) {
	for _, k := range keys {
		in.HandleKey(k)
	}
}

func TestInput_Editing(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want string
	}{
		{"space key inserts a blank", []string{"B", "u", "r", "s", "t", "space", "p", "i", "p", "e"}, "Burst pipe"},
		{"backspace at cursor", []string{"p", "i", "p", "e", "left", "backspace"}, "pie"},
		{"delete under cursor", []string{"t", "a", "p", "home", "delete"}, "ap"},
		{"insert after home", []string{"o", "a", "d", "home", "r"}, "road"},
		{"end returns to the tail", []string{"d", "r", "home", "end", "a", "i", "n"}, "drain"},
		{"named keys are not typed", []string{"tab", "ctrl+x", "f1", "x"}, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := NewInput("Description").SetMaxLength(2000)
			input.Focus(true)
			typeKeys(input, tt.keys...)
			if input.Value() != tt.want {
				t.Errorf("got %q, want %q", input.Value(), tt.want)
			}
		})
	}
}

func TestInput_IgnoresKeysWhenBlurred(t *testing.T) {
	input := NewInput("Phone")
	typeKeys(input, "9", "8")
	if input.Value() != "" {
		t.Errorf("blurred input accepted keys: %q", input.Value())
	}
}

func TestInput_CoordinateMaxLength(t *testing.T) {
	input := NewInput("Latitude").SetMaxLength(12)
	input.Focus(true)
	typeKeys(input, strings.Split("12.971598765432", "")...)
	if input.Value() != "12.971598765" {
		t.Errorf("expected value capped at 12 characters, got %q", input.Value())
	}
}

func TestInput_RequiredField(t *testing.T) {
	email := NewInput("Email").SetRequired(true)

	if email.Validate() {
		t.Fatal("empty required field should not validate")
	}
	if out := email.Render(); !strings.Contains(out, "Email*:") || !strings.Contains(out, "Required") {
		t.Errorf("expected starred label and error, got %q", out)
	}

	email.SetValue("  ")
	if email.Validate() {
		t.Error("blank value should not satisfy a required field")
	}

	email.SetValue("caller@example.org")
	if !email.Validate() {
		t.Fatal("filled required field should validate")
	}
	if strings.Contains(email.Render(), "Required") {
		t.Error("error should clear after a successful validation")
	}
}

func TestInput_RenderWithLabelWidth(t *testing.T) {
	lat := NewInput("Latitude").SetWidth(12).SetPlaceholder("12.9716")

	if out := lat.RenderWithLabelWidth(16); !strings.Contains(out, "Latitude:") || !strings.Contains(out, "12.9716") {
		t.Errorf("expected label and placeholder, got %q", out)
	}
	if out := lat.RenderWithLabelWidth(0); strings.Contains(out, "Latitude") {
		t.Errorf("label width 0 should omit the label, got %q", out)
	}

	lat.Focus(true)
	out := lat.RenderWithLabelWidth(16)
	if strings.Contains(out, "12.9716") || !strings.Contains(out, "_") {
		t.Errorf("focused empty input should show the cursor, not the placeholder: %q", out)
	}

	lat.SetValue("abc").SetError("not a number")
	if out := lat.RenderWithLabelWidth(10); !strings.Contains(out, "abc_") || !strings.Contains(out, "not a number") {
		t.Errorf("expected value, cursor and error, got %q", out)
	}
}

func TestInput_SetPalette(t *testing.T) {
	p := Palette{Primary: lipgloss.Color("#FFB000"), Error: lipgloss.Color("#FF3030")}
	input := NewInput("Email").SetPalette(p)
	if input.palette != p {
		t.Errorf("palette not applied: %+v", input.palette)
	}
}

// intakeLikeForm builds a form shaped like the phone-in complaint form.
func intakeLikeForm() (*Form, *Input, *Input, *Input) {
	email := NewInput("Email").SetRequired(true).SetWidth(30)
	description := NewInput("Description").SetRequired(true).SetWidth(50).SetMaxLength(2000)
	latitude := NewInput("Latitude").SetWidth(12).SetMaxLength(12)
	form := NewForm("PHONE-IN COMPLAINT")
	form.AddField(email).AddField(description).AddField(latitude)
	return form, email, description, latitude
}

func TestForm_RoutesKeysToFocusedField(t *testing.T) {
	form, email, description, latitude := intakeLikeForm()

	if !email.IsFocused() || description.IsFocused() {
		t.Fatal("first field should start focused")
	}

	typeKeys(form, "a", "@", "b")
	form.HandleKey("tab")
	typeKeys(form, "N", "o", "space", "w", "a", "t", "e", "r")
	form.HandleKey("down")
	typeKeys(form, "1", "2")

	if email.Value() != "a@b" || description.Value() != "No water" || latitude.Value() != "12" {
		t.Errorf("unexpected values %q / %q / %q", email.Value(), description.Value(), latitude.Value())
	}

	form.HandleKey("tab")
	if !email.IsFocused() {
		t.Error("tab on the last field should wrap to the first")
	}
	form.HandleKey("shift+tab")
	if !latitude.IsFocused() {
		t.Error("shift+tab on the first field should wrap to the last")
	}
	form.HandleKey("up")
	if !description.IsFocused() || latitude.IsFocused() {
		t.Error("up should move focus to the previous field")
	}
}

func TestForm_SubmitAndCancel(t *testing.T) {
	tests := []struct {
		name      string
		keys      []string
		submitted bool
		cancelled bool
	}{
		{"enter advances before the last field", []string{"enter"}, false, false},
		{"enter on the last field submits", []string{"enter", "enter", "enter"}, true, false},
		{"ctrl+s submits from anywhere", []string{"ctrl+s"}, true, false},
		{"esc cancels", []string{"esc"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form, _, _, _ := intakeLikeForm()
			typeKeys(form, tt.keys...)
			if form.IsSubmitted() != tt.submitted || form.IsCancelled() != tt.cancelled {
				t.Errorf("submitted=%v cancelled=%v, want %v/%v",
					form.IsSubmitted(), form.IsCancelled(), tt.submitted, tt.cancelled)
			}
		})
	}
}

func TestForm_FailedSaveReopens(t *testing.T) {
	form, _, _, _ := intakeLikeForm()
	form.HandleKey("ctrl+s")

	form.SetError("email is required")
	form.Reopen()

	if form.IsSubmitted() || form.IsCancelled() {
		t.Error("reopened form should be editable again")
	}
	if !strings.Contains(form.Render(), "Error: email is required") {
		t.Error("expected the save error in the form")
	}
}

func TestForm_RenderResponsive(t *testing.T) {
	form, _, _, _ := intakeLikeForm()

	wide := form.RenderResponsive(120)
	for _, want := range []string{"=== PHONE-IN COMPLAINT ===", "Email*:", "Description*:", "Latitude:", "Shift+Tab/Up:Prev"} {
		if !strings.Contains(wide, want) {
			t.Errorf("wide form missing %q", want)
		}
	}

	narrow := form.RenderResponsive(50)
	if strings.Contains(narrow, "Shift+Tab") || !strings.Contains(narrow, "Tab:Next  Ctrl+S:Save  Esc:Cancel") {
		t.Errorf("expected compact help on a narrow terminal, got %q", narrow)
	}
}

func TestForm_SetPalette(t *testing.T) {
	p := Palette{Accent: lipgloss.Color("#FFE0A0")}
	form := NewForm("PHONE-IN COMPLAINT").SetPalette(p)
	if form.palette != p {
		t.Errorf("palette not applied: %+v", form.palette)
	}
}
