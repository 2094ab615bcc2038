// Package scheduler implements the Scheduler (C8): a pure function from
// current hour, recent history, world state, story state, and
// personality to the next segment type. It is deliberately built on the
// standard library only — the decision is a small priority table, not a
// concern any third-party library in the corpus addresses (see DESIGN.md).
package scheduler

import (
	"broadcastengine/internal/memory"
	"broadcastengine/internal/personality"
	"broadcastengine/internal/story"
	"broadcastengine/internal/worldstate"
)

// SegmentType enumerates the kinds of segment the scheduler can choose.
type SegmentType string

const (
	SegmentTimeCheck SegmentType = "time_check"
	SegmentWeather   SegmentType = "weather"
	SegmentNews      SegmentType = "news"
	SegmentStory     SegmentType = "story"
	SegmentGossip    SegmentType = "gossip"
)

// weatherSlots are the hours at which a weather segment is due, once per
// day, if not already covered (spec §4.8).
var weatherSlots = map[int]bool{6: true, 12: true, 17: true}

// newsSlots are the hours news is due, once per day, if not already
// covered. Spec §4.8 calls these "preconfigured slots" without naming a
// configuration key for them (unlike weather's explicit 6/12/17), so
// they are a fixed package default here rather than plumbed through
// config.Config.
var newsSlots = map[int]bool{9: true, 19: true}

// Input bundles everything Decide needs to stay a pure function: the
// caller (the Orchestrator) is responsible for deriving each field from
// the live session memory / world state / story state / personality
// before calling in.
type Input struct {
	CurrentHour int

	// HourAlreadyCovered reports whether a time-check segment has
	// already been emitted for CurrentHour this ring window.
	HourAlreadyCovered bool

	// WeatherAlreadyCoveredToday reports whether a weather segment has
	// already aired today, independent of slot.
	WeatherAlreadyCoveredToday bool

	// NewsDue reports whether CurrentHour is a configured news slot not
	// yet covered today.
	NewsDue bool

	// PendingStoryTimeline and PendingStoryOK together report whether a
	// timeline has an active story with a pending beat whose quota still
	// permits emitting it.
	PendingStoryTimeline story.Timeline
	PendingStoryOK       bool
}

// BuildInput derives an Input from live state, applying the rules of
// spec §4.8 precisely: time-check covers every otherwise-uncovered hour
// boundary; weather is checked only at 6/12/17 and only once per day;
// story eligibility consults StoryState's active set and the caller's
// per-timeline beat counts against the configured quotas.
func BuildInput(
	currentHour int,
	mem *memory.Ring,
	ws worldstate.Snapshot,
	ss *story.State,
	_ personality.Personality,
	beatsEmittedThisWindow map[story.Timeline]int,
	quotas map[story.Timeline]int,
) Input {
	in := Input{CurrentHour: currentHour}

	for _, seg := range mem.LastK(mem.Size()) {
		if seg.Type == string(SegmentTimeCheck) && seg.Hour == currentHour {
			in.HourAlreadyCovered = true
			break
		}
	}

	if weatherSlots[currentHour] {
		// The ring's capacity (default 10) is well under a day's worth
		// of segments at the configured pace, so any weather segment
		// still resident in it reflects ws's current calendar day.
		for _, seg := range mem.LastK(mem.Size()) {
			if seg.Type == string(SegmentWeather) && seg.Hour <= currentHour {
				in.WeatherAlreadyCoveredToday = true
				break
			}
		}
	}

	if newsSlots[currentHour] {
		covered := false
		for _, seg := range mem.LastK(mem.Size()) {
			if seg.Type == string(SegmentNews) && seg.Hour <= currentHour {
				covered = true
				break
			}
		}
		in.NewsDue = !covered
	}

	for timeline, id := range ss.Active {
		st := ss.Arena[id]
		if st == nil || st.IsComplete() {
			continue
		}
		quota := quotas[timeline]
		if quota <= 0 || beatsEmittedThisWindow[timeline] < quota {
			in.PendingStoryTimeline = timeline
			in.PendingStoryOK = true
			break
		}
	}
	return in
}

// Decide implements spec §4.8's tie-break order: time > weather > news >
// story > gossip. It never returns an error and never suspends; gossip
// is the always-available fallback.
func Decide(in Input) SegmentType {
	if !in.HourAlreadyCovered {
		return SegmentTimeCheck
	}
	if weatherSlots[in.CurrentHour] && !in.WeatherAlreadyCoveredToday {
		return SegmentWeather
	}
	if in.NewsDue {
		return SegmentNews
	}
	if in.PendingStoryOK {
		return SegmentStory
	}
	return SegmentGossip
}
