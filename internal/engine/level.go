package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spec-kit/incident-dispatch/internal/domain"
)

// levelThreshold maps a level to the minute count a ticket's TTR must
// strictly exceed to reach it. Entries are evaluated highest level first.
type levelThreshold struct {
	level   domain.Level
	minutes float64
}

var categoryThresholds = map[domain.Category][]levelThreshold{
	domain.CategoryK1: {
		{domain.LevelL7, 9 * 60},
		{domain.LevelL6, 6 * 60},
		{domain.LevelL5, 4 * 60},
		{domain.LevelL4, 2.5 * 60},
		{domain.LevelL3, 1.5 * 60},
		{domain.LevelL2, 60},
	},
	domain.CategoryK2: {
		{domain.LevelL3, 1.5 * 60},
		{domain.LevelL2, 60},
	},
	domain.CategoryK3: {
		{domain.LevelL2, 60},
	},
}

// ParseTTRMinutes converts an HH:MM:SS duration string to minutes.
func ParseTTRMinutes(ttr string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(ttr), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed TTR %q", ttr)
	}
	var fields [3]int
	for i, part := range parts {
		value, err := strconv.Atoi(part)
		if err != nil || value < 0 {
			return 0, fmt.Errorf("malformed TTR %q", ttr)
		}
		fields[i] = value
	}
	return float64(fields[0])*60 + float64(fields[1]) + float64(fields[2])/60, nil
}

// ClassifyLevel maps a ticket's category and TTR to its initial escalation
// level: the highest level whose category threshold the TTR strictly
// exceeds, else L1. A missing category or unparsable TTR short-circuits to
// LevelUnknown, which disables classification and assignment for the ticket.
func ClassifyLevel(category domain.Category, ttr string) domain.Level {
	thresholds, ok := categoryThresholds[category]
	if !ok {
		return domain.LevelUnknown
	}
	minutes, err := ParseTTRMinutes(ttr)
	if err != nil {
		return domain.LevelUnknown
	}
	for _, t := range thresholds {
		if minutes > t.minutes {
			return t.level
		}
	}
	return domain.LevelL1
}
