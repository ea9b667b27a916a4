package export

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sig-0/ibkrrates/storage/types"
)

var testDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// generateSnapshot generates a snapshot with two tiers per currency,
// USD first, followed by the given number of extra currencies
func generateSnapshot(rateType types.RateType, date time.Time, extra int) *types.Snapshot {
	records := []*types.RateRecord{
		{
			Date:      date,
			Currency:  "USD",
			TierLow:   decimal.NewNullDecimal(decimal.Zero),
			TierHigh:  decimal.NewNullDecimal(decimal.NewFromInt(10000)),
			Rate:      decimal.Zero,
			TierLabel: "0 ≤ 10,000",
		},
		{
			Date:          date,
			Currency:      "USD",
			TierLow:       decimal.NewNullDecimal(decimal.NewFromInt(10000)),
			Rate:          decimal.RequireFromString("3.580"),
			BenchmarkDiff: decimal.NewNullDecimal(decimal.RequireFromString("0.5")),
			TierLabel:     "> 10,000",
		},
	}

	for i := range extra {
		currency := types.Currency(fmt.Sprintf("C%02d", i))

		records = append(
			records,
			&types.RateRecord{
				Date:     date,
				Currency: currency,
				TierLow:  decimal.NewNullDecimal(decimal.Zero),
				TierHigh: decimal.NewNullDecimal(decimal.NewFromInt(10000)),
				Rate:     decimal.Zero,
			},
			&types.RateRecord{
				Date:     date,
				Currency: currency,
				TierLow:  decimal.NewNullDecimal(decimal.NewFromInt(10000)),
				Rate:     decimal.NewFromFloat(1.25).Add(decimal.NewFromInt(int64(i))),
			},
		)
	}

	return &types.Snapshot{
		Date:      date,
		FetchedAt: date.Add(time.Hour),
		Type:      rateType,
		Records:   records,
	}
}
