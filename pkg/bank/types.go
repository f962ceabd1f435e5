package bank

import "fmt"

// TokenPair is the access/refresh pair issued by the aggregator.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Institution is one bank known to the aggregator.
type Institution struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Requisition is the consent session a bank customer completes in a
// browser before account access is granted.
type Requisition struct {
	ID       string   `json:"id"`
	Link     string   `json:"link"`
	Accounts []string `json:"accounts"`
}

// AccountDetails describes one bank account. Some banks omit product.
type AccountDetails struct {
	Name    string `json:"name"`
	Product string `json:"product"`
}

// Amount is a decimal amount as the aggregator reports it, a string to
// avoid float parsing on the wire.
type Amount struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// Balance is a nested balance figure.
type Balance struct {
	BalanceAmount Amount `json:"balanceAmount"`
}

// FeedTransaction is one raw booked transaction as returned by the
// aggregator. Field names follow the upstream wire format.
type FeedTransaction struct {
	TransactionID                     string   `json:"transactionId"`
	BookingDate                       string   `json:"bookingDate"`
	ValueDate                         string   `json:"valueDate,omitempty"`
	TransactionAmount                 Amount   `json:"transactionAmount"`
	RemittanceInformationUnstructured string   `json:"remittanceInformationUnstructured,omitempty"`
	AdditionalInformation             string   `json:"additionalInformation,omitempty"`
	BalanceAfterTransaction           *Balance `json:"balanceAfterTransaction,omitempty"`
}

// FeedError is a transaction-feed response that did not carry the booked
// list. Ingesting anything from such a response is unsafe, so it aborts
// the run.
type FeedError struct {
	AccountID string
	Summary   string
	Detail    string
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("bad transaction feed for account %q: %s: %s", e.AccountID, e.Summary, e.Detail)
}

// APIError is an opaque failure reported by the aggregator API.
type APIError struct {
	Status  int
	Summary string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Summary == "" {
		return fmt.Sprintf("aggregator API error (status %d)", e.Status)
	}
	return fmt.Sprintf("aggregator API error (status %d): %s: %s", e.Status, e.Summary, e.Detail)
}
