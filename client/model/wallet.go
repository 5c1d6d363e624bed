package model

import "time"

type Transaction struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	AmountMinor int64     `json:"amountMinor"`
	Reference   string    `json:"reference,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type TransactionPage struct {
	Items  []Transaction `json:"items"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

type WalletSummary struct {
	Balance struct {
		BalanceNaira float64 `json:"balanceNaira"`
		BalanceMinor int64   `json:"balanceMinor"`
	} `json:"balance"`
	Owing struct {
		OwingNaira float64 `json:"owingNaira"`
	} `json:"owing"`
	RecentTransactions []Transaction `json:"recentTransactions"`
}

type Balance struct {
	BalanceMinor                 int64   `json:"balanceMinor"`
	BalanceNaira                 float64 `json:"balanceNaira"`
	Currency                     string  `json:"currency"`
	TotalEarnedFromPlatformMinor int64   `json:"totalEarnedFromPlatformMinor"`
	TotalPayoutsMinor            int64   `json:"totalPayoutsMinor"`
}

type Owing struct {
	OwingMinor        int64   `json:"owingMinor"`
	OwingNaira        float64 `json:"owingNaira"`
	Currency          string  `json:"currency"`
	TotalFeeOwedMinor int64   `json:"totalFeeOwedMinor"`
	TotalFeePaidMinor int64   `json:"totalFeePaidMinor"`
}

type Bank struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// PaymentInit is returned when a checkout is started.
type PaymentInit struct {
	AuthorizationURL string `json:"authorizationUrl"`
	AccessCode       string `json:"accessCode"`
	Reference        string `json:"reference"`
}

// PaymentVerification is the backend's answer to a payment reference check.
type PaymentVerification struct {
	Success bool     `json:"success"`
	Booking *Booking `json:"booking,omitempty"`
}
