package main

import (
	"fmt"
	"strings"
	"time"

	"familyboard/internal/board"
)

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "<1m"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func formatMoney(m board.Money) string {
	currency := strings.TrimSpace(m.Currency)
	if currency == "" {
		currency = "USD"
	}
	sign := ""
	cents := m.AmountCents
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, currency)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func ownerLabel(a board.Assignment) string {
	if a.IsUnassigned() {
		return "-"
	}
	return a.AssignedTo
}

func priorityLabel(p board.Priority) string {
	if p == board.PriorityNormal {
		return "-"
	}
	return p.String()
}

// stageNames maps stage ids to names for history rendering.
func stageNames(stages []board.Stage) map[string]string {
	names := make(map[string]string, len(stages))
	for _, s := range stages {
		names[s.ID] = s.Name
	}
	return names
}

func stageLabel(names map[string]string, id string) string {
	if id == "" {
		return "-"
	}
	if name, ok := names[id]; ok {
		return name
	}
	return id
}

// resolveStage accepts a stage id or a case-insensitive name.
func resolveStage(stages []board.Stage, ref string) (board.Stage, error) {
	ref = strings.TrimSpace(ref)
	for _, s := range stages {
		if s.ID == ref {
			return s, nil
		}
	}
	var match *board.Stage
	for i := range stages {
		if strings.EqualFold(stages[i].Name, ref) {
			if match != nil {
				return board.Stage{}, fmt.Errorf("stage name %q is ambiguous; use the stage id", ref)
			}
			match = &stages[i]
		}
	}
	if match == nil {
		return board.Stage{}, fmt.Errorf("stage %q: %w", ref, board.ErrInvalidStage)
	}
	return *match, nil
}
