package generator

import (
	"fmt"
	"strconv"
	"strings"

	"broadcastengine/internal/contextasm"
	"broadcastengine/internal/corpus"
	"broadcastengine/internal/scheduler"
)

// templates maps each segment type to its prompt skeleton (spec §4.10:
// "renders a textual prompt from a per-segment-type template"). `{{lore}}`
// is substituted with the retrieved chunk bodies, everything else comes
// from contextasm.TemplateVars.
var templates = map[scheduler.SegmentType]string{
	scheduler.SegmentTimeCheck: "You are {{dj_name}}, broadcasting at hour {{hour}}:00. " +
		"Give a brief, in-character time-check filler remark. Keep it under two sentences.",
	scheduler.SegmentWeather: "You are {{dj_name}}, broadcasting at hour {{hour}}:00. " +
		"The current weather is {{weather_type}} ({{weather_temp}} degrees).{{continuity}} " +
		"Deliver a short weather report in character, drawing on this lore where it fits:\n{{lore}}",
	scheduler.SegmentNews: "You are {{dj_name}}, broadcasting at hour {{hour}}:00. " +
		"Report the following as breaking news in your own voice:\n{{lore}}",
	scheduler.SegmentStory: "You are {{dj_name}}, broadcasting at hour {{hour}}:00. " +
		"Continue the ongoing story \"{{story_title}}\". The next beat: {{story_beat}}. " +
		"Weave in this supporting lore:\n{{lore}}",
	scheduler.SegmentGossip: "You are {{dj_name}}, broadcasting at hour {{hour}}:00. " +
		"Share a piece of local gossip or color commentary, drawing on this lore where it fits:\n{{lore}}",
}

// Render fills a segment type's template from vars and the retrieved
// chunk bodies.
func Render(segType scheduler.SegmentType, vars contextasm.TemplateVars, chunks []corpus.Scored) string {
	tpl, ok := templates[segType]
	if !ok {
		tpl = templates[scheduler.SegmentGossip]
	}

	var lore strings.Builder
	for i, c := range chunks {
		if i > 0 {
			lore.WriteString("\n")
		}
		lore.WriteString("- " + c.Chunk.Text)
	}

	continuity := ""
	if vars.ContinuityPhrase != "" {
		continuity = " " + vars.ContinuityPhrase + "."
	}

	storyTitle, storyBeat := vars.StoryTitle, ""
	if vars.StoryBeat != nil {
		storyBeat = vars.StoryBeat.Summary
	}

	replacer := strings.NewReplacer(
		"{{dj_name}}", vars.DJName,
		"{{hour}}", strconv.Itoa(vars.Hour),
		"{{weather_type}}", vars.Weather.Type,
		"{{weather_temp}}", fmt.Sprintf("%.1f", vars.Weather.Temperature),
		"{{continuity}}", continuity,
		"{{lore}}", lore.String(),
		"{{story_title}}", storyTitle,
		"{{story_beat}}", storyBeat,
	)
	return replacer.Replace(tpl)
}
