package engine

import (
	"fmt"
	"strings"
	"time"

	"rental-chat/models"
)

// Interpreter turns NLU results into bot messages: it rewrites raw
// scheduling parameters into readable copy and attaches the vehicle
// carousel when the reply announces availability.
type Interpreter struct {
	Bot         models.Author
	Catalog     []models.OptionCard
	Fallback    string
	ReadyMarker string
}

// Interpret produces the bot messages to append for one NLU result.
// An empty fulfillment text degrades to the fallback copy; if neither
// text nor cards result, nothing is emitted.
func (in *Interpreter) Interpret(res models.NLUResult) []models.Message {
	text := res.FulfillmentText
	if text == "" {
		text = in.Fallback
	}
	if res.Location != "" && res.Date != "" && res.Time != "" {
		text = rewriteSchedule(text, res.Date, res.Time)
	}
	var options []models.OptionCard
	if in.ReadyMarker != "" && len(in.Catalog) > 0 && strings.Contains(text, in.ReadyMarker) {
		options = append([]models.OptionCard(nil), in.Catalog...)
	}
	if text == "" && len(options) == 0 {
		return nil
	}
	return []models.Message{{Text: text, Author: in.Bot, Options: options}}
}

// rewriteSchedule replaces the raw date and time substrings in text with
// readable renderings. The time parameter is the canonical source for
// both; the date parameter is only a label to be replaced. Replacement is
// literal and first-occurrence: if parsing fails or a raw substring does
// not occur verbatim, that part of the text is left as-is.
func rewriteSchedule(text, rawDate, rawTime string) string {
	t, err := parseWhen(rawTime)
	if err != nil {
		return text
	}
	text = strings.Replace(text, rawDate, formatDay(t), 1)
	text = strings.Replace(text, rawTime, t.Format("3:04 PM"), 1)
	return text
}

func parseWhen(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date-time %q", raw)
}

// formatDay renders a day ordinal plus full month name, e.g. "3rd June".
func formatDay(t time.Time) string {
	return fmt.Sprintf("%d%s %s", t.Day(), ordinalSuffix(t.Day()), t.Month())
}

func ordinalSuffix(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}
