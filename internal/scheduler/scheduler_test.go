package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"broadcastengine/internal/memory"
	"broadcastengine/internal/personality"
	"broadcastengine/internal/story"
	"broadcastengine/internal/worldstate"
)

func TestDecideTieBreakOrder(t *testing.T) {
	base := Input{CurrentHour: 6}

	// Hour not yet covered wins over everything else.
	in := base
	in.WeatherAlreadyCoveredToday = false
	in.NewsDue = true
	in.PendingStoryOK = true
	require.Equal(t, SegmentTimeCheck, Decide(in))

	// Hour covered, weather slot due and not covered -> weather.
	in = base
	in.HourAlreadyCovered = true
	in.NewsDue = true
	in.PendingStoryOK = true
	require.Equal(t, SegmentWeather, Decide(in))

	// Weather already covered, news due -> news.
	in = base
	in.HourAlreadyCovered = true
	in.WeatherAlreadyCoveredToday = true
	in.NewsDue = true
	in.PendingStoryOK = true
	require.Equal(t, SegmentNews, Decide(in))

	// Neither weather nor news due -> story, if pending.
	in = Input{CurrentHour: 10, HourAlreadyCovered: true, PendingStoryOK: true}
	require.Equal(t, SegmentStory, Decide(in))

	// Nothing else pending -> gossip fallback.
	in = Input{CurrentHour: 10, HourAlreadyCovered: true}
	require.Equal(t, SegmentGossip, Decide(in))
}

func TestDecideWeatherOnlyAtConfiguredSlots(t *testing.T) {
	in := Input{CurrentHour: 10, HourAlreadyCovered: true, WeatherAlreadyCoveredToday: false}
	require.Equal(t, SegmentGossip, Decide(in), "hour 10 is not a weather slot")
}

func TestBuildInputPendingStoryHonorsQuota(t *testing.T) {
	ss := story.New()
	ss.Arena["s1"] = &story.Story{
		StoryID: "s1", Timeline: story.TimelineDaily, Status: story.StatusActive,
		Acts: []story.Act{{ActNumber: 1}},
	}
	ss.Active[story.TimelineDaily] = "s1"

	quotas := map[story.Timeline]int{story.TimelineDaily: 1}
	beats := map[story.Timeline]int{story.TimelineDaily: 1}
	mem := memory.New(10)
	ws := worldstate.Snapshot{}
	pers := personality.Personality{}

	in := BuildInput(10, mem, ws, ss, pers, beats, quotas)
	require.False(t, in.PendingStoryOK, "quota already met must not surface a pending story")

	beats[story.TimelineDaily] = 0
	in = BuildInput(10, mem, ws, ss, pers, beats, quotas)
	require.True(t, in.PendingStoryOK)
	require.Equal(t, story.TimelineDaily, in.PendingStoryTimeline)
}
