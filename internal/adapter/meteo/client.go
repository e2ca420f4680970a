package meteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/retail-sales-etl/internal/domain"
	"github.com/couchcryptid/retail-sales-etl/internal/observability"
)

// Client implements domain.WeatherClient using the Open-Meteo ERA5 archive.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an Open-Meteo historical weather client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
		metrics: metrics,
	}
}

// DailyWeather fetches one day of hourly cloud cover plus daily aggregates at
// a coordinate. The date must be YYYY-MM-DD. The response is pinned to GMT so
// hour indexes line up across locations.
func (c *Client) DailyWeather(ctx context.Context, lat, lon float64, date string) (domain.DailySummary, error) {
	params := url.Values{
		"latitude":   {formatCoord(lat)},
		"longitude":  {formatCoord(lon)},
		"start_date": {date},
		"end_date":   {date},
		"timezone":   {"GMT"},
		"daily":      {"temperature_2m_max,rain_sum,snowfall_sum,precipitation_hours"},
		"hourly":     {"cloudcover"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/era5?"+params.Encode(), nil)
	if err != nil {
		return domain.DailySummary{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.WeatherAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return domain.DailySummary{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(resp.Body)
		return domain.DailySummary{}, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return domain.DailySummary{}, fmt.Errorf("decode response: %w", err)
	}

	if len(body.Hourly.CloudCover) == 0 {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return domain.DailySummary{}, fmt.Errorf("no hourly cloud cover for %s", date)
	}
	if len(body.Daily.TemperatureMax) == 0 || len(body.Daily.RainSum) == 0 || len(body.Daily.SnowfallSum) == 0 {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return domain.DailySummary{}, fmt.Errorf("incomplete daily aggregates for %s", date)
	}

	c.metrics.WeatherRequests.WithLabelValues("success").Inc()
	c.logger.Debug("fetched daily weather", "date", date, "lat", lat, "lon", lon)

	return domain.DailySummary{
		HourlyCloudCover: body.Hourly.CloudCover,
		RainSum:          body.Daily.RainSum[0],
		SnowfallSum:      body.Daily.SnowfallSum[0],
		MaxTemperature:   body.Daily.TemperatureMax[0],
	}, nil
}

// formatCoord renders a coordinate with the shortest exact representation,
// matching how the archive expects query floats.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Open-Meteo API response types.

type response struct {
	Hourly hourly `json:"hourly"`
	Daily  daily  `json:"daily"`
}

type hourly struct {
	CloudCover []float64 `json:"cloudcover"`
}

type daily struct {
	TemperatureMax     []float64 `json:"temperature_2m_max"`
	RainSum            []float64 `json:"rain_sum"`
	SnowfallSum        []float64 `json:"snowfall_sum"`
	PrecipitationHours []float64 `json:"precipitation_hours"`
}
