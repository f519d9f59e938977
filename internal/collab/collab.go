// Package collab defines the external services the complaint workflow
// consults and the timeout discipline used when calling them.
//
// Every collaborator is optional. Callers treat a nil collaborator, an
// error and a timeout the same way: they apply their local fallback.
package collab

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/civicflow/civicflow/internal/models"
)

// ErrTimeout is returned by Call when the collaborator did not answer in time.
var ErrTimeout = eris.New("collaborator timed out")

// Classification is the result of categorising a complaint.
type Classification struct {
	Category    models.Category `json:"category"`
	Subcategory string          `json:"subcategory"`
	Confidence  float64         `json:"confidence"`
}

// Validation is the verdict on whether a complaint concerns infrastructure.
type Validation struct {
	Valid           bool              `json:"is_valid"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	ExtractedFields map[string]string `json:"extracted_fields,omitempty"`
}

// RiskAssessment scores how urgent a complaint is.
type RiskAssessment struct {
	PriorityScore int              `json:"priority_score"`
	RiskLevel     models.RiskLevel `json:"risk_level"`
}

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Classifier assigns a category to a complaint.
type Classifier interface {
	Classify(ctx context.Context, description, mediaText string) (*Classification, error)
}

// Validator decides whether a complaint is about infrastructure.
type Validator interface {
	Validate(ctx context.Context, description string) (*Validation, error)
}

// RiskAssessor scores complaint urgency.
type RiskAssessor interface {
	AssessRisk(ctx context.Context, description string, category models.Category, mediaText string) (*RiskAssessment, error)
}

// Geocoder resolves coordinates to an address hierarchy.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (models.Location, error)
}

// Transcriber turns a voice attachment into text.
type Transcriber interface {
	Transcribe(ctx context.Context, media *models.Media) (string, error)
}

// ImageAnalyzer describes what an image attachment shows.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, media *models.Media) (string, error)
}

// Narrator writes the prose of a daily briefing.
type Narrator interface {
	Narrate(ctx context.Context, stats models.BriefingStats) (string, error)
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Call runs fn with a deadline. If fn has not returned when the deadline
// passes, Call returns ErrTimeout without waiting for it; fn sees its
// context cancelled and its result is discarded. A timeout <= 0 means no
// deadline beyond ctx.
func Call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		var r result
		defer func() {
			if p := recover(); p != nil {
				r.err = eris.Errorf("collaborator panicked: %v", p)
			}
			done <- r
		}()
		r.v, r.err = fn(ctx)
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		if ctx.Err() == context.DeadlineExceeded {
			return zero, eris.Wrapf(ErrTimeout, "after %s", timeout)
		}
		return zero, eris.Wrap(ctx.Err(), "collaborator call cancelled")
	}
}
