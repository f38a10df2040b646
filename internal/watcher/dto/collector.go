package dto

import "time"

// TradeRecord is one currently-visible trade scraped from a source's feed.
// Symbol, Strategy and Direction define the position's identity; a record
// missing any of them is skipped by the differ.
type TradeRecord struct {
	Symbol     string    `json:"symbol"`
	Strategy   string    `json:"strategy"`
	Direction  string    `json:"direction"`
	Price      float64   `json:"price"`
	Quantity   float64   `json:"quantity"`
	Strike     *float64  `json:"strike,omitempty"`
	Expiry     *string   `json:"expiry,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}
