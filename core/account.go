package core

// Account is a snapshot of the trading account at decision time.
type Account struct {
	Equity      float64
	Cash        float64
	BuyingPower float64
}
