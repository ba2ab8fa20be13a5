package core

import "time"

// Action is the classification a scored signal resolves to.
type Action string

const (
	ActionAvoid    Action = "Avoid"
	ActionWait     Action = "Wait"
	ActionWatch    Action = "Watch"
	ActionBuySetup Action = "BuySetup"
)

// SignalRecord is the append-only record of one evaluated symbol on one bar.
type SignalRecord struct {
	Symbol   string    `json:"symbol"`
	Date     time.Time `json:"date"`
	Score    float64   `json:"score"`
	Action   Action    `json:"action"`
	Checks   []string  `json:"checks,omitempty"`
	Pattern  string    `json:"pattern,omitempty"`
	Touch    string    `json:"touch,omitempty"`
	Price    float64   `json:"price"`
	Reason   string    `json:"reason,omitempty"`
	Executed bool      `json:"executed"`
	Note     string    `json:"note,omitempty"`
}

// DecisionSide is the direction of a trade decision.
type DecisionSide string

const (
	DecisionBuy  DecisionSide = "BUY"
	DecisionSell DecisionSide = "SELL"
)

// Decision is one trade decision event emitted to the order-placement
// collaborator and any monitoring consumers.
type Decision struct {
	Side     DecisionSide `json:"side"`
	Symbol   string       `json:"symbol"`
	Tier     Tier         `json:"tier"`
	Quantity float64      `json:"quantity"`
	Price    float64      `json:"price"`
	Reason   string       `json:"reason"`
	Time     time.Time    `json:"time"`
}
