package server

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sig-0/ibkrrates/storage/types"
)

// RateResponse is a single rate table row.
// Decimals are rendered as strings, with their source precision
type RateResponse struct {
	TierLow       *string        `json:"tier_low"`
	TierHigh      *string        `json:"tier_high"`
	BenchmarkDiff *string        `json:"benchmark_diff"`
	Currency      types.Currency `json:"currency"`
	Rate          string         `json:"rate"`
	TierLabel     string         `json:"tier_label"`
}

type SnapshotResponse struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Type      types.RateType  `json:"type"`
	Date      string          `json:"date"`
	Results   []*RateResponse `json:"results"`
}

type HistoryPointResponse struct {
	Date string `json:"date"`
	Rate string `json:"rate"`
}

type HistoryResponse struct {
	Type     types.RateType          `json:"type"`
	Currency types.Currency          `json:"currency"`
	TierLow  string                  `json:"tier_low"`
	Results  []*HistoryPointResponse `json:"results"`
}

type CurrenciesResponse struct {
	Type    types.RateType   `json:"type"`
	Results []types.Currency `json:"results"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func newSnapshotResponse(snapshot *types.Snapshot) *SnapshotResponse {
	resp := &SnapshotResponse{
		Date:      snapshot.Date.Format(types.DateFormat),
		FetchedAt: snapshot.FetchedAt,
		Type:      snapshot.Type,
		Results:   make([]*RateResponse, 0, len(snapshot.Records)),
	}

	for _, r := range snapshot.Records {
		resp.Results = append(resp.Results, &RateResponse{
			Currency:      r.Currency,
			TierLow:       formatNullDecimal(r.TierLow),
			TierHigh:      formatNullDecimal(r.TierHigh),
			Rate:          types.FormatDecimal(r.Rate),
			BenchmarkDiff: formatNullDecimal(r.BenchmarkDiff),
			TierLabel:     r.TierLabel,
		})
	}

	return resp
}

func newHistoryResponse(query *types.HistoryQuery, points []*types.HistoryPoint) *HistoryResponse {
	resp := &HistoryResponse{
		Type:     query.Type,
		Currency: query.Currency,
		TierLow:  types.FormatDecimal(query.TierLow),
		Results:  make([]*HistoryPointResponse, 0, len(points)),
	}

	for _, p := range points {
		resp.Results = append(resp.Results, &HistoryPointResponse{
			Date: p.Date.Format(types.DateFormat),
			Rate: types.FormatDecimal(p.Rate),
		})
	}

	return resp
}

func formatNullDecimal(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}

	v := types.FormatDecimal(d.Decimal)

	return &v
}
