// Package fimcp implements the client for the Fi-MCP financial data
// provider: session authentication, typed per-category fetches, and the
// pure metric extractors that normalize raw provider payloads.
package fimcp

import "time"

// Category identifies one financial data kind served by the provider.
type Category string

// Categories served by the provider's test directory. Each maps to one
// provider tool and one metric extractor.
const (
	CategoryNetWorth     Category = "net_worth"
	CategoryBankTxns     Category = "bank_transactions"
	CategoryMutualFunds  Category = "mutual_fund_transactions"
	CategoryEPF          Category = "epf_details"
	CategoryCreditReport Category = "credit_report"
	CategoryStockTxns    Category = "stock_transactions"
)

// AllCategories returns every category in fetch order. FetchAll iterates
// this slice; the order is stable so collection runs are comparable.
func AllCategories() []Category {
	return []Category{
		CategoryNetWorth,
		CategoryBankTxns,
		CategoryMutualFunds,
		CategoryEPF,
		CategoryCreditReport,
		CategoryStockTxns,
	}
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// AuthState is the tagged result of an authentication attempt. Callers can
// distinguish a real provider login from a best-effort synthetic session.
type AuthState int

const (
	// AuthFailed means no session could be constructed at all.
	AuthFailed AuthState = iota

	// AuthOK means the provider accepted the login and issued a session.
	AuthOK

	// AuthDegraded means the provider was unreachable or answered with an
	// unexpected shape, and a synthetic session was fabricated locally.
	AuthDegraded
)

// String returns the state name for logging.
func (s AuthState) String() string {
	switch s {
	case AuthOK:
		return "authenticated"
	case AuthDegraded:
		return "degraded"
	default:
		return "failed"
	}
}

// Authenticated reports whether the state carries a usable session.
func (s AuthState) Authenticated() bool {
	return s == AuthOK || s == AuthDegraded
}

// Session holds the provider session for one subject. Owned exclusively by
// the Client; mutated only inside the authentication critical section.
type Session struct {
	SessionID string
	AuthToken string
	Subject   string
	State     AuthState
}

// FetchResult is the outcome of one per-category fetch. Immutable once
// created. Metrics are present only on success; a failed fetch carries the
// error text instead.
type FetchResult struct {
	Category  Category
	Success   bool
	Payload   map[string]interface{}
	Metrics   map[string]interface{}
	Error     string
	FetchedAt time.Time
}
