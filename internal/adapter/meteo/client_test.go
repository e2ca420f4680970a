package meteo

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/retail-sales-etl/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:    observability.NewMetricsForTesting(),
	}
}

func archiveDay(cloud float64) response {
	hours := make([]float64, 24)
	for i := range hours {
		hours[i] = cloud
	}
	return response{
		Hourly: hourly{CloudCover: hours},
		Daily: daily{
			TemperatureMax:     []float64{21.4},
			RainSum:            []float64{3.2},
			SnowfallSum:        []float64{0},
			PrecipitationHours: []float64{5},
		},
	}
}

func TestClient_DailyWeather_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/era5", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "44.8016128", q.Get("latitude"))
		assert.Equal(t, "-68.7712257", q.Get("longitude"))
		assert.Equal(t, "2023-01-15", q.Get("start_date"))
		assert.Equal(t, "2023-01-15", q.Get("end_date"))
		assert.Equal(t, "GMT", q.Get("timezone"))
		assert.Equal(t, "temperature_2m_max,rain_sum,snowfall_sum,precipitation_hours", q.Get("daily"))
		assert.Equal(t, "cloudcover", q.Get("hourly"))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(archiveDay(85)))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	summary, err := c.DailyWeather(context.Background(), 44.8016128, -68.7712257, "2023-01-15")
	require.NoError(t, err)

	assert.Len(t, summary.HourlyCloudCover, 24)
	assert.Equal(t, 85.0, summary.HourlyCloudCover[0])
	assert.Equal(t, 3.2, summary.RainSum)
	assert.Equal(t, 0.0, summary.SnowfallSum)
	assert.Equal(t, 21.4, summary.MaxTemperature)
}

func TestClient_DailyWeather_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"reason":"Latitude must be in range of -90 to 90"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.DailyWeather(context.Background(), 144.8, -68.77, "2023-01-15")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestClient_DailyWeather_EmptyHourly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := archiveDay(50)
		resp.Hourly.CloudCover = nil
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.DailyWeather(context.Background(), 44.8, -68.77, "2023-01-15")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hourly cloud cover")
}

func TestClient_DailyWeather_EmptyDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := archiveDay(50)
		resp.Daily.RainSum = nil
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.DailyWeather(context.Background(), 44.8, -68.77, "2023-01-15")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily aggregates")
}

func TestClient_DailyWeather_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.DailyWeather(context.Background(), 44.8, -68.77, "2023-01-15")
	require.Error(t, err)
}
