package entity

import "time"

// Message is a chatter entry attached to a record
type Message struct {
	ID        int64     `json:"id"`
	ResModel  string    `json:"res_model"`
	ResID     int64     `json:"res_id"`
	Body      string    `json:"body"`
	Subtype   string    `json:"subtype"`
	AuthorID  *int64    `json:"author_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Activity is a to-do assigned to a user on a sheet
type Activity struct {
	ID        int64      `json:"id"`
	SheetID   int64      `json:"sheet_id"`
	UserID    int64      `json:"user_id"`
	Type      string     `json:"type"`
	State     string     `json:"state"`
	Note      string     `json:"note,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DoneAt    *time.Time `json:"done_at,omitempty"`
}

// LiquidationReport is the settlement report of a liquidation sheet
type LiquidationReport struct {
	ID        int64     `json:"id"`
	SheetID   int64     `json:"sheet_id"`
	Notes     string    `json:"notes,omitempty"`
	CreatedBy *int64    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
