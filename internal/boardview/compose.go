// Package boardview turns an authoritative board into the rendered column
// view and the summary statistics. Everything here is a pure function of its
// inputs.
package boardview

import (
	"sort"
	"time"

	"familyboard/internal/board"
)

// Card is one assignment with its derived display fields.
type Card struct {
	Assignment  board.Assignment
	TimeInStage time.Duration
}

// Column is one stage and its sorted cards.
type Column struct {
	Stage board.Stage
	Cards []Card
	Total int
	Rush  int
}

// View is the composed board.
type View struct {
	Columns []Column
	// Total, Unassigned and Rush cover every stage, hidden ones included.
	Total      int
	Unassigned int
	Rush       int
}

// Options controls composition.
type Options struct {
	IncludeHidden bool
}

// StageStats summarises one stage.
type StageStats struct {
	StageID     string
	TotalOrders int
	RushOrders  int
}

// Stats summarises a board over all stages, hidden included.
type Stats struct {
	PerStage         []StageStats
	TotalOrders      int
	UnassignedOrders int
}

// Compose groups assignments by stage in position order and sorts each
// column by priority descending, then time in stage descending, then order
// id.
func Compose(b board.Board, now time.Time, opts Options) View {
	stageList := append([]board.Stage(nil), b.Stages...)
	board.SortStages(stageList)

	cardsByStage := make(map[string][]Card, len(stageList))
	view := View{}
	for _, a := range b.Assignments {
		cardsByStage[a.StageID] = append(cardsByStage[a.StageID], Card{
			Assignment:  a,
			TimeInStage: a.TimeInStage(now),
		})
		view.Total++
		if a.IsUnassigned() {
			view.Unassigned++
		}
		if a.IsRush() {
			view.Rush++
		}
	}

	view.Columns = make([]Column, 0, len(stageList))
	for _, stage := range stageList {
		if stage.Hidden && !opts.IncludeHidden {
			continue
		}
		cards := cardsByStage[stage.ID]
		SortCards(cards)
		column := Column{Stage: stage, Cards: cards, Total: len(cards)}
		if column.Cards == nil {
			column.Cards = []Card{}
		}
		for _, card := range cards {
			if card.Assignment.IsRush() {
				column.Rush++
			}
		}
		view.Columns = append(view.Columns, column)
	}
	return view
}

// SortCards orders cards in place by priority descending, time in stage
// descending, then order id.
func SortCards(cards []Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		a, b := cards[i], cards[j]
		if a.Assignment.Priority != b.Assignment.Priority {
			return a.Assignment.Priority > b.Assignment.Priority
		}
		if a.TimeInStage != b.TimeInStage {
			return a.TimeInStage > b.TimeInStage
		}
		return a.Assignment.OrderID < b.Assignment.OrderID
	})
}

// ComputeStats counts orders per stage over every stage of the board. Stage
// visibility never affects the result.
func ComputeStats(b board.Board) Stats {
	stageList := append([]board.Stage(nil), b.Stages...)
	board.SortStages(stageList)

	index := make(map[string]int, len(stageList))
	stats := Stats{PerStage: make([]StageStats, len(stageList))}
	for i, stage := range stageList {
		index[stage.ID] = i
		stats.PerStage[i] = StageStats{StageID: stage.ID}
	}
	for _, a := range b.Assignments {
		stats.TotalOrders++
		if a.IsUnassigned() {
			stats.UnassignedOrders++
		}
		i, ok := index[a.StageID]
		if !ok {
			continue
		}
		stats.PerStage[i].TotalOrders++
		if a.IsRush() {
			stats.PerStage[i].RushOrders++
		}
	}
	return stats
}

// ForStage returns the stats entry of stageID.
func (s Stats) ForStage(stageID string) (StageStats, bool) {
	for _, entry := range s.PerStage {
		if entry.StageID == stageID {
			return entry, true
		}
	}
	return StageStats{}, false
}
