package ledger

import "time"

// Monetary constants of the community currency. These are fixed at compile
// time; there is no runtime rate administration.
const (
	// DailyIncome is the basic-income amount credited per claim.
	DailyIncome Cents = 1000

	// IncomeCooldown is the minimum gap between two income claims.
	IncomeCooldown = 24 * time.Hour

	// FeeBasisPoints is the payment fee, 0.5% of the amount.
	FeeBasisPoints = 50

	// SavingsAPYPercent is the nominal annual savings rate.
	SavingsAPYPercent = 5.0

	// USDPerUnit is the fixed display conversion rate.
	USDPerUnit = 0.12
)

// PaymentFee returns the fee charged on a payment of the given amount,
// rounded half up to the nearest cent.
func PaymentFee(amount Cents) Cents {
	return Cents((int64(amount)*FeeBasisPoints + 5000) / 10000)
}

// ProjectedAnnualReturn is the simple one-year projection on a savings
// principal. It is computed on read, never accrued.
func ProjectedAnnualReturn(principal Cents) Cents {
	return Cents((int64(principal)*int64(SavingsAPYPercent*100) + 5000) / 10000)
}

// USDEquivalent converts an amount to US dollars at the fixed rate.
func USDEquivalent(amount Cents) float64 {
	return amount.Units() * USDPerUnit
}
