package complaints

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	complaintsvc "github.com/civicflow/civicflow/internal/services/complaints"
	"github.com/civicflow/civicflow/internal/tui/components"
)

// IntakeForm records a complaint phoned in to the call centre.
type IntakeForm struct {
	form *components.Form

	name        *components.Input
	email       *components.Input
	phone       *components.Input
	description *components.Input
	address     *components.Input
	latitude    *components.Input
	longitude   *components.Input
}

// NewIntakeForm creates an empty phone-in form.
func NewIntakeForm(p components.Palette) *IntakeForm {
	f := &IntakeForm{
		name:        components.NewInput("Caller Name").SetWidth(30).SetPalette(p),
		email:       components.NewInput("Email").SetRequired(true).SetWidth(30).SetPalette(p),
		phone:       components.NewInput("Phone").SetWidth(16).SetMaxLength(20).SetPalette(p),
		description: components.NewInput("Description").SetRequired(true).SetWidth(50).SetMaxLength(2000).SetPalette(p),
		address:     components.NewInput("Address").SetWidth(40).SetMaxLength(300).SetPalette(p),
		latitude:    components.NewInput("Latitude").SetWidth(12).SetMaxLength(12).SetPlaceholder("12.9716").SetPalette(p),
		longitude:   components.NewInput("Longitude").SetWidth(12).SetMaxLength(12).SetPlaceholder("77.5946").SetPalette(p),
	}
	f.form = components.NewForm("PHONE-IN COMPLAINT").SetPalette(p)
	for _, field := range []components.FormField{f.name, f.email, f.phone, f.description, f.address, f.latitude, f.longitude} {
		f.form.AddField(field)
	}
	return f
}

// HandleKey forwards a key to the form.
func (f *IntakeForm) HandleKey(key string) { f.form.HandleKey(key) }

// IsSubmitted returns true once the operator saved the form.
func (f *IntakeForm) IsSubmitted() bool { return f.form.IsSubmitted() }

// IsCancelled returns true if the operator abandoned the form.
func (f *IntakeForm) IsCancelled() bool { return f.form.IsCancelled() }

// Fail shows err and lets the operator correct the input.
func (f *IntakeForm) Fail(err error) {
	f.form.SetError(err.Error())
	f.form.Reopen()
}

// Render renders the form for a terminal width.
func (f *IntakeForm) Render(width int) string {
	return f.form.RenderResponsive(width)
}

// GetData validates the fields and builds the submission.
func (f *IntakeForm) GetData() (complaintsvc.SubmitInput, error) {
	var errs []error
	for _, in := range []*components.Input{f.email, f.description} {
		if !in.Validate() {
			errs = append(errs, fmt.Errorf("%s is required", strings.ToLower(in.Label())))
		}
	}

	input := complaintsvc.SubmitInput{
		CitizenEmail: strings.TrimSpace(f.email.Value()),
		CitizenPhone: strings.TrimSpace(f.phone.Value()),
		CitizenName:  strings.TrimSpace(f.name.Value()),
		Description:  strings.TrimSpace(f.description.Value()),
		Address:      strings.TrimSpace(f.address.Value()),
	}

	lat, lon := strings.TrimSpace(f.latitude.Value()), strings.TrimSpace(f.longitude.Value())
	switch {
	case lat == "" && lon == "":
	case lat == "" || lon == "":
		errs = append(errs, errors.New("latitude and longitude must be given together"))
	default:
		la, err := parseCoordinate(lat, 90)
		if err != nil {
			f.latitude.SetError(err.Error())
			errs = append(errs, fmt.Errorf("latitude: %w", err))
		}
		lo, err := parseCoordinate(lon, 180)
		if err != nil {
			f.longitude.SetError(err.Error())
			errs = append(errs, fmt.Errorf("longitude: %w", err))
		}
		input.Latitude, input.Longitude = &la, &lo
	}

	if err := errors.Join(errs...); err != nil {
		return complaintsvc.SubmitInput{}, err
	}
	return input, nil
}

func parseCoordinate(s string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("not a number")
	}
	if v < -limit || v > limit {
		return 0, fmt.Errorf("out of range ±%.0f", limit)
	}
	return v, nil
}
