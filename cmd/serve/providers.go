package serve

import (
	"fmt"
	"time"

	"github.com/sig-0/ibkrrates/ingest"
	"github.com/sig-0/ibkrrates/provider/ibkr"
	"github.com/sig-0/ibkrrates/storage/types"
)

// defaultProviders returns the default ingestion providers,
// one per IBKR Canada pricing page
func defaultProviders(timeout, interval time.Duration, userAgent string) ([]ingest.Provider, error) {
	rateTypes := []types.RateType{
		types.RateTypeInterest,
		types.RateTypeMargin,
	}

	providers := make([]ingest.Provider, 0, len(rateTypes))

	for _, rateType := range rateTypes {
		url, err := ibkr.URLFor(rateType)
		if err != nil {
			return nil, err
		}

		p, err := ibkr.NewProvider(
			rateType,
			ibkr.NewHTTPSource(url, timeout, userAgent),
			ibkr.WithInterval(interval),
		)
		if err != nil {
			return nil, fmt.Errorf("unable to create %s provider: %w", rateType, err)
		}

		providers = append(providers, p)
	}

	return providers, nil
}
