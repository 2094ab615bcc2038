// Package worldstate implements World State (C5): the persistent
// simulated clock, weather, and per-type broadcast counters.
package worldstate

import "time"

// WeatherEvent is one historical weather occurrence kept in the
// <=30-day rolling window (spec §3).
type WeatherEvent struct {
	Type        string
	Intensity   float64
	Temperature float64
	Region      string
	StartedAt   time.Time
	Duration    time.Duration
}

// Weather is the currently active weather condition.
type Weather struct {
	Type              string
	Intensity         float64
	Temperature       float64
	DurationRemaining time.Duration
}

// Date is the simulated calendar date.
type Date struct {
	Year  int
	Month int
	Day   int
}

// State is the full persisted World State (spec §3). SchemaVersion lets
// readers tolerate older persisted versions via additive fields only
// (spec §6).
type State struct {
	SchemaVersion int `json:"schema_version"`

	CurrentHour int     `json:"current_hour"` // 0-23
	Date        Date    `json:"date"`
	Weather     Weather `json:"weather"`

	// HistoricalWeather retains events within the last 30 days; older
	// entries are pruned on RecordWeather.
	HistoricalWeather []WeatherEvent `json:"historical_weather"`

	// BroadcastCounters counts accepted segments per segment type.
	BroadcastCounters map[string]int `json:"broadcast_counters"`
}

const currentSchemaVersion = 1
const historyWindow = 30 * 24 * time.Hour

// New builds a fresh World State at hour 0 with no weather history.
func New(date Date) *State {
	return &State{
		SchemaVersion:     currentSchemaVersion,
		CurrentHour:       0,
		Date:              date,
		BroadcastCounters: map[string]int{},
	}
}

// Snapshot is an immutable view handed to readers (spec §4.5); it is a
// deep-enough copy that mutating it cannot affect the owning State.
type Snapshot struct {
	CurrentHour       int
	Date              Date
	Weather           Weather
	HistoricalWeather []WeatherEvent
	BroadcastCounters map[string]int
}

// Snapshot returns an immutable view of the current state.
func (s *State) Snapshot() Snapshot {
	hist := make([]WeatherEvent, len(s.HistoricalWeather))
	copy(hist, s.HistoricalWeather)
	counters := make(map[string]int, len(s.BroadcastCounters))
	for k, v := range s.BroadcastCounters {
		counters[k] = v
	}
	return Snapshot{
		CurrentHour:       s.CurrentHour,
		Date:              s.Date,
		Weather:           s.Weather,
		HistoricalWeather: hist,
		BroadcastCounters: counters,
	}
}

// AdvanceHour ticks the simulated clock by one hour, rolling the calendar
// date forward at midnight, and decrements the active weather's remaining
// duration, clearing it once exhausted.
func (s *State) AdvanceHour(segmentType string) {
	s.CurrentHour++
	if s.CurrentHour >= 24 {
		s.CurrentHour = 0
		s.advanceDate()
	}
	if s.Weather.DurationRemaining > 0 {
		s.Weather.DurationRemaining -= time.Hour
		if s.Weather.DurationRemaining < 0 {
			s.Weather.DurationRemaining = 0
		}
	}
	if segmentType != "" {
		if s.BroadcastCounters == nil {
			s.BroadcastCounters = map[string]int{}
		}
		s.BroadcastCounters[segmentType]++
	}
}

// RecordSegment increments the per-type broadcast counter for an accepted
// segment without ticking the simulated clock. The Orchestrator calls this
// for every segment between clock ticks, reserving AdvanceHour for the
// segments_per_hour boundary (spec §6's segments_per_hour paces how many
// segments air before the simulated hour actually advances).
func (s *State) RecordSegment(segmentType string) {
	if segmentType == "" {
		return
	}
	if s.BroadcastCounters == nil {
		s.BroadcastCounters = map[string]int{}
	}
	s.BroadcastCounters[segmentType]++
}

func (s *State) advanceDate() {
	daysInMonth := [...]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	max := daysInMonth[s.Date.Month-1]
	if s.Date.Month == 2 && isLeap(s.Date.Year) {
		max = 29
	}
	s.Date.Day++
	if s.Date.Day > max {
		s.Date.Day = 1
		s.Date.Month++
		if s.Date.Month > 12 {
			s.Date.Month = 1
			s.Date.Year++
		}
	}
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// RecordWeather sets the active weather and appends it to the historical
// window, pruning events older than 30 days.
func (s *State) RecordWeather(region string, event WeatherEvent, now time.Time) {
	s.Weather = Weather{
		Type:              event.Type,
		Intensity:         event.Intensity,
		Temperature:       event.Temperature,
		DurationRemaining: event.Duration,
	}
	event.Region = region
	event.StartedAt = now
	s.HistoricalWeather = append(s.HistoricalWeather, event)
	s.pruneWeatherHistory(now)
}

func (s *State) pruneWeatherHistory(now time.Time) {
	kept := s.HistoricalWeather[:0]
	for _, e := range s.HistoricalWeather {
		if now.Sub(e.StartedAt) <= historyWindow {
			kept = append(kept, e)
		}
	}
	s.HistoricalWeather = kept
}

// RecentNotableWeather returns historical weather events for a region
// within the last `days` days (relative to now), most recent first.
func (s *State) RecentNotableWeather(region string, days int, now time.Time) []WeatherEvent {
	cutoff := time.Duration(days) * 24 * time.Hour
	var out []WeatherEvent
	for i := len(s.HistoricalWeather) - 1; i >= 0; i-- {
		e := s.HistoricalWeather[i]
		if e.Region != "" && e.Region != region {
			continue
		}
		if cutoff > 0 && e.StartedAt.Before(now.Add(-cutoff)) {
			continue
		}
		out = append(out, e)
	}
	return out
}
