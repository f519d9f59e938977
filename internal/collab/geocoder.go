package collab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/civicflow/civicflow/internal/models"
)

// Nominatim is a reverse geocoder backed by an OpenStreetMap Nominatim
// endpoint.
type Nominatim struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewNominatim creates a geocoder. Nominatim's usage policy requires an
// identifying User-Agent.
func NewNominatim(baseURL, userAgent string, timeout time.Duration) *Nominatim {
	return &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
	}
}

var _ Geocoder = (*Nominatim)(nil)

type nominatimResponse struct {
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
	Error       string            `json:"error"`
}

// ReverseGeocode implements Geocoder.
func (n *Nominatim) ReverseGeocode(ctx context.Context, lat, lon float64) (models.Location, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("format", "json")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return models.Location{}, eris.Wrap(err, "building geocode request")
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return models.Location{}, eris.Wrap(err, "calling geocoder")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Location{}, eris.Errorf("geocoder returned %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Location{}, eris.Wrap(err, "decoding geocoder response")
	}
	if body.Error != "" {
		return models.Location{}, eris.New("geocoder: " + body.Error)
	}

	a := body.Address
	return models.Location{
		Address:  body.DisplayName,
		Ward:     firstOf(a, "suburb", "neighbourhood"),
		Block:    firstOf(a, "city_block", "quarter"),
		District: firstOf(a, "city_district", "county"),
		City:     firstOf(a, "city", "town"),
		State:    a["state"],
	}, nil
}

func firstOf(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}
