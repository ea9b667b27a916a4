package ibkr

import (
	"errors"
	"fmt"

	"github.com/sig-0/ibkrrates/storage/types"
)

var errUnknownRateType = errors.New("unknown rate type")

const (
	// InterestRatesURL is the IBKR Canada interest rates pricing page
	InterestRatesURL = "https://www.interactivebrokers.ca/en/accounts/fees/pricing-interest-rates.php"

	// MarginRatesURL is the IBKR Canada margin rates pricing page
	MarginRatesURL = "https://www.interactivebrokers.ca/en/trading/margin-rates.php"

	// DefaultUserAgent is sent with every page request
	DefaultUserAgent = "Mozilla/5.0 (compatible; ibkrrates/1.0; +https://github.com/sig-0/ibkrrates)"
)

// URLFor returns the pricing page URL of the given rate type
func URLFor(rateType types.RateType) (string, error) {
	switch rateType {
	case types.RateTypeInterest:
		return InterestRatesURL, nil
	case types.RateTypeMargin:
		return MarginRatesURL, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownRateType, rateType)
	}
}
