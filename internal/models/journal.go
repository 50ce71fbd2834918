package models

import "time"

type JournalStatus string

const (
	JournalExecuted JournalStatus = "executed"
	JournalFailed   JournalStatus = "failed"
	JournalUnknown  JournalStatus = "unknown"
	JournalPaused   JournalStatus = "paused"
	JournalForced   JournalStatus = "forced"
)

// JournalEntry: одна запись журнала сделок.
type JournalEntry struct {
	Symbol     string
	Intent     Intent
	Transition Transition
	SideBefore Side
	SideAfter  Side
	Quantity   float64
	Price      float64
	OrderID    string
	Status     JournalStatus
	Error      string
	CreatedAt  time.Time
}
