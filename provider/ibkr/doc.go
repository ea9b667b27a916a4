// Package ibkr provides rate table providers for the IBKR Canada pricing pages.
//
// # Tables
//
// ## Interest rates
//
// URL: https://www.interactivebrokers.ca/en/accounts/fees/pricing-interest-rates.php
// Heading: "Global Interest Rates"
// Interval: 24 hours
//
// Credit interest paid on cash balances, per currency and balance tier.
// The rate cell may quote a spread below benchmark, e.g. "3.580% (BM - 0.5%)".
//
// ## Margin rates
//
// URL: https://www.interactivebrokers.ca/en/trading/margin-rates.php
// Heading: "Interest Charged on Margin Loans"
// Interval: 24 hours
//
// Interest charged on margin loans, per currency and loan tier.
// The rate cell quotes a spread above benchmark, e.g. "5.580% (BM + 1.5%)".
//
// # Extraction
//
// Only the first table body following the heading is read. Each row yields
// the currency, tier and rate cells (first three cells, tags stripped).
// Rows without a currency reuse the currency of the row above, as the pages
// merge the currency cell across the tiers of one currency.
//
// Tier text is split into bounds:
//
//	"All"              -> no bounds
//	"> 10,000"         -> low 10000
//	"0 ≤ 10,000"       -> low 0, high 10000
//	"15,000 - 150,000" -> low 15000, high 150000
//	"≤ 10,000"         -> low 0, high 10000
//	"10,000"           -> low 10000
//
// Rows missing a currency, tier text or rate are dropped. Malformed markup
// never fails the extraction, it yields fewer (or no) rows.
package ibkr
