package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordEvictsOldestBeyondCapacity(t *testing.T) {
	r := New(3)
	r.Record(RecentSegment{Type: "a"})
	r.Record(RecentSegment{Type: "b"})
	r.Record(RecentSegment{Type: "c"})
	r.Record(RecentSegment{Type: "d"})

	require.Equal(t, 3, r.Size())
	all := r.LastK(3)
	require.Equal(t, []string{"d", "c", "b"}, []string{all[0].Type, all[1].Type, all[2].Type})
}

func TestLastKOrdersNewestFirst(t *testing.T) {
	r := New(10)
	r.Record(RecentSegment{Type: "a"})
	r.Record(RecentSegment{Type: "b"})
	r.Record(RecentSegment{Type: "c"})

	last2 := r.LastK(2)
	require.Len(t, last2, 2)
	require.Equal(t, "c", last2[0].Type)
	require.Equal(t, "b", last2[1].Type)
}

func TestLastKClampsToSize(t *testing.T) {
	r := New(10)
	r.Record(RecentSegment{Type: "a"})
	require.Len(t, r.LastK(5), 1)
	require.Len(t, r.LastK(0), 1)
}

func TestContinuityForWeatherReportsNoChangeWhenSameType(t *testing.T) {
	r := New(10)
	r.Record(RecentSegment{Weather: &WeatherSnapshot{Type: "sunny"}})

	cont := r.ContinuityForWeather("appalachia", "sunny")
	require.False(t, cont.Changed)
	require.Empty(t, cont.TransitionPhrase)
}

func TestContinuityForWeatherUsesTableForKnownTransition(t *testing.T) {
	r := New(10)
	r.Record(RecentSegment{Weather: &WeatherSnapshot{Type: "rainy"}})

	cont := r.ContinuityForWeather("appalachia", "sunny")
	require.True(t, cont.Changed)
	require.Equal(t, "rainy", cont.PreviousType)
	require.Equal(t, "the clouds finally broke over the mountains", cont.TransitionPhrase)
}

func TestContinuityForWeatherOmitsPhraseForUnknownTransition(t *testing.T) {
	r := New(10)
	r.Record(RecentSegment{Weather: &WeatherSnapshot{Type: "fog"}})

	cont := r.ContinuityForWeather("capital wasteland", "sunny")
	require.True(t, cont.Changed)
	require.Empty(t, cont.TransitionPhrase, "no table entry for an unconfigured region must omit, not invent, a phrase")
}

func TestContinuityForWeatherSkipsSegmentsWithoutWeather(t *testing.T) {
	r := New(10)
	r.Record(RecentSegment{Weather: &WeatherSnapshot{Type: "rainy"}})
	r.Record(RecentSegment{Type: "gossip"})

	cont := r.ContinuityForWeather("appalachia", "sunny")
	require.True(t, cont.Changed)
	require.Equal(t, "rainy", cont.PreviousType, "must scan past weather-less segments to the most recent weather snapshot")
}
