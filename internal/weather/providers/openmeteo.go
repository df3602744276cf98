package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-region-dashboard/internal/weather"
)

// DefaultArchiveURL is the Open-Meteo historical weather endpoint.
const DefaultArchiveURL = "https://archive-api.open-meteo.com/v1/archive"

// OpenMeteoArchiveProvider implements weather.SeriesProvider against the
// Open-Meteo archive API. Series are requested for whole calendar days in
// the provider's timezone, so sample 0 is local midnight of the start day.
type OpenMeteoArchiveProvider struct {
	name     string
	baseURL  string
	timezone *time.Location
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

// NewOpenMeteoArchiveProvider creates the archive provider. An empty baseURL
// selects DefaultArchiveURL and a nil tz selects UTC.
func NewOpenMeteoArchiveProvider(client *http.Client, baseURL string, tz *time.Location) *OpenMeteoArchiveProvider {
	if baseURL == "" {
		baseURL = DefaultArchiveURL
	}
	if tz == nil {
		tz = time.UTC
	}

	return &OpenMeteoArchiveProvider{
		name:     "openmeteo-archive",
		baseURL:  baseURL,
		timezone: tz,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newBreaker("openmeteo-archive"),
	}
}

// WithBackoff overrides the retry schedule.
func (p *OpenMeteoArchiveProvider) WithBackoff(b BackoffConfig) *OpenMeteoArchiveProvider {
	p.httpCfg.Backoff = b
	return p
}

func (p *OpenMeteoArchiveProvider) Name() string {
	return p.name
}

func (p *OpenMeteoArchiveProvider) FetchSeries(ctx context.Context, req weather.SeriesRequest) (weather.Series, error) {
	if !req.Range.Valid() {
		return nil, fmt.Errorf("openmeteo: range start %s is after end %s", req.Range.Start, req.Range.End)
	}
	metric := req.Metric
	if metric == "" {
		metric = weather.MetricTemperature2m
	}

	startDate, endDate := req.Range.In(p.timezone).DateBounds()

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(req.Location.Lat, 'f', 4, 64))
		values.Set("longitude", strconv.FormatFloat(req.Location.Lon, 'f', 4, 64))
		values.Set("start_date", startDate)
		values.Set("end_date", endDate)
		values.Set("hourly", string(metric))
		values.Set("timezone", p.timezone.String())

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, fmt.Errorf("openmeteo: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Hourly map[string]json.RawMessage `json:"hourly"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("openmeteo: decode response: %w", err)
	}

	raw, ok := payload.Hourly[string(metric)]
	if !ok {
		return weather.Series{}, nil
	}

	// Missing hours are encoded as null.
	var values []*float64
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("openmeteo: decode %s: %w", metric, err)
	}

	series := make(weather.Series, len(values))
	for i, v := range values {
		if v == nil {
			series[i] = math.NaN()
			continue
		}
		series[i] = *v
	}
	return series, nil
}
