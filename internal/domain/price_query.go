package domain

// PriceQuery is one answered price question.
// Corresponds to price_queries table in ClickHouse. Append-only.
type PriceQuery struct {
	ID        string   // uuid
	TeamID    string   // workspace id
	Channel   string   // channel the question was asked in
	User      string   // asking user (may be empty)
	Text      string   // message text as received
	Symbols   []string // matched symbols, in reply order
	Delivered bool     // reply was posted
	CreatedAt int64    // event time (ms)
}
