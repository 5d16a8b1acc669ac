package scraper

import (
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

// ParseRelativeTime переводит подпись вида «2 hours ago» в абсолютное время относительно now.
// Нераспознанный текст даёт nil.
func ParseRelativeTime(text string, now time.Time) *time.Time {
	value := strings.Join(strings.Fields(text), " ")
	if value == "" {
		return nil
	}
	cfg := &dps.Configuration{
		Languages:           []string{"en"},
		CurrentTime:         now,
		DefaultTimezone:     now.Location(),
		PreferredDateSource: dps.Past,
	}
	dt, err := dps.Parse(cfg, value)
	if err != nil || dt.IsZero() {
		return nil
	}
	t := dt.Time
	return &t
}
