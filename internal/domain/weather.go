package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Weather categories assigned to market sales days.
const (
	WeatherSunny  = "sunny"
	WeatherRainy  = "rainy"
	WeatherSnowy  = "snowy"
	WeatherCloudy = "cloudy"
)

// sunnyCloudCoverMax, rainyRainSumMin, and snowySnowfallMin are the fixed
// categorization thresholds. Evaluation order is significant: a low-cloud day
// is sunny even if rain was recorded.
const (
	sunnyCloudCoverMax = 10.0
	rainyRainSumMin    = 2.0
	snowySnowfallMin   = 0.5
)

// midDayStart and midDayEnd bound the hourly cloud cover window (hour indexes
// 7 through 14 inclusive) the sunny check averages over.
const (
	midDayStart = 7
	midDayEnd   = 15
)

// DailySummary is the slice of the historical weather response the enricher
// consumes: one day of hourly cloud cover percentages plus daily aggregates.
type DailySummary struct {
	HourlyCloudCover []float64
	RainSum          float64
	SnowfallSum      float64
	MaxTemperature   float64
}

// Weather is the enrichment attached to accepted market rows.
type Weather struct {
	MaxTemperature float64
	Category       string
}

// Geocoder resolves a free-text location to coordinates. An unresolvable
// location is an error; there is no fallback coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, location string) (lat, lon float64, err error)
}

// WeatherClient fetches the historical weather summary for one day at a
// coordinate. The date is in YYYY-MM-DD form.
type WeatherClient interface {
	DailyWeather(ctx context.Context, lat, lon float64, date string) (DailySummary, error)
}

// Enricher resolves (date, location) pairs to weather, memoizing results so
// identical pairs hit the external services at most once. The memo is the
// enricher's whole state: construct a fresh Enricher per pipeline run and
// cached weather can never leak between runs.
type Enricher struct {
	geocoder Geocoder
	weather  WeatherClient
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]Weather
}

// NewEnricher creates an enricher with an empty memo.
func NewEnricher(geocoder Geocoder, weather WeatherClient, logger *slog.Logger) *Enricher {
	return &Enricher{
		geocoder: geocoder,
		weather:  weather,
		logger:   logger,
		cache:    make(map[string]Weather),
	}
}

// Lookup returns the weather at location on a normalized YYYY-MM-DD date.
// External failures are returned as-is so the caller decides batch policy;
// failed lookups are not cached.
func (e *Enricher) Lookup(ctx context.Context, date, location string) (Weather, error) {
	key := date + ":" + location

	e.mu.Lock()
	cached, ok := e.cache[key]
	e.mu.Unlock()
	if ok {
		e.logger.Debug("using cached weather data", "date", date, "location", location)
		return cached, nil
	}

	e.logger.Debug("getting weather data", "date", date, "location", location)
	lat, lon, err := e.geocoder.Geocode(ctx, location)
	if err != nil {
		return Weather{}, fmt.Errorf("geocode %q: %w", location, err)
	}

	summary, err := e.weather.DailyWeather(ctx, lat, lon, date)
	if err != nil {
		return Weather{}, fmt.Errorf("daily weather for %q on %s: %w", location, date, err)
	}

	w := Weather{
		MaxTemperature: summary.MaxTemperature,
		Category:       CategorizeWeather(summary),
	}

	e.mu.Lock()
	e.cache[key] = w
	e.mu.Unlock()
	return w, nil
}

// CacheLen reports how many distinct (date, location) pairs the run has
// resolved so far.
func (e *Enricher) CacheLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}

// CategorizeWeather maps a day's weather data to its category: mean mid-day
// cloud cover below 10% is sunny, more than 2mm of rain is rainy, more than
// 0.5mm of snowfall is snowy, anything else is cloudy.
func CategorizeWeather(s DailySummary) string {
	switch {
	case meanMidDayCloudCover(s.HourlyCloudCover) < sunnyCloudCoverMax:
		return WeatherSunny
	case s.RainSum > rainyRainSumMin:
		return WeatherRainy
	case s.SnowfallSum > snowySnowfallMin:
		return WeatherSnowy
	default:
		return WeatherCloudy
	}
}

// meanMidDayCloudCover averages the 07:00-14:00 window of an hourly series.
// Series shorter than the window average whatever falls inside it.
func meanMidDayCloudCover(hourly []float64) float64 {
	hi := midDayEnd
	if len(hourly) < hi {
		hi = len(hourly)
	}
	if midDayStart >= hi {
		return 0
	}

	window := hourly[midDayStart:hi]
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	return sum / float64(len(window))
}
