package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sig-0/ibkrrates/storage"
	"github.com/sig-0/ibkrrates/storage/types"
)

var (
	errUnableToFetchSnapshot   = errors.New("unable to fetch snapshot")
	errUnableToFetchCurrencies = errors.New("unable to fetch currencies")
	errUnableToFetchHistory    = errors.New("unable to fetch history")
	errSnapshotNotFound        = errors.New("no snapshot found")

	errInvalidType    = errors.New("invalid type (must be interest-rates or margin-rates)")
	errInvalidAsOf    = errors.New("invalid as_of (must be YYYY-MM-DD)")
	errInvalidTierLow = errors.New("invalid tier_low (must be a number)")
)

// Snapshot serves the latest rate table on or before the as_of date
func (s *Server) Snapshot(w http.ResponseWriter, r *http.Request) {
	var (
		typeParam = chi.URLParam(r, "type")

		asOfParam     = r.URL.Query().Get("as_of")
		currencyParam = r.URL.Query().Get("currency")
	)

	rateType, err := parseRateType(typeParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	// Parse the effective date (defaults to the latest snapshot)
	asOf, err := parseAsOf(asOfParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	q := &types.SnapshotQuery{
		AsOf: asOf,
		Type: rateType,
	}

	// Parse the currency filter (optional)
	if strings.TrimSpace(currencyParam) != "" {
		currency, err := parseCurrencySymbol(currencyParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)

			return
		}

		q.Currency = &currency
	}

	snapshot, err := s.storage.Snapshot(r.Context(), q)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, errSnapshotNotFound)

			return
		}

		s.logger.Debug(
			"unable to fetch snapshot",
			"err", err,
		)

		writeError(
			w,
			http.StatusInternalServerError,
			errUnableToFetchSnapshot,
		)

		return
	}

	writeJSON(w, http.StatusOK, newSnapshotResponse(snapshot))
}

// Currencies serves the currencies present for the rate type
func (s *Server) Currencies(w http.ResponseWriter, r *http.Request) {
	rateType, err := parseRateType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	items, err := s.storage.ListCurrencies(r.Context(), rateType)
	if err != nil {
		s.logger.Debug(
			"unable to fetch currencies",
			"err", err,
		)

		writeError(
			w,
			http.StatusInternalServerError,
			errUnableToFetchCurrencies,
		)

		return
	}

	if items == nil {
		items = []types.Currency{}
	}

	resp := &CurrenciesResponse{
		Type:    rateType,
		Results: items,
	}

	writeJSON(w, http.StatusOK, resp)
}

// History serves the rate of a single currency tier across snapshots
func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	var (
		typeParam     = chi.URLParam(r, "type")
		currencyParam = chi.URLParam(r, "currency")

		tierLowParam = r.URL.Query().Get("tier_low")
	)

	rateType, err := parseRateType(typeParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	currency, err := parseCurrencySymbol(currencyParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	// Tiers without a lower bound start at zero
	tierLow, err := parseTierLow(tierLowParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	q := &types.HistoryQuery{
		TierLow:  tierLow,
		Type:     rateType,
		Currency: currency,
	}

	points, err := s.storage.History(r.Context(), q)
	if err != nil {
		s.logger.Debug(
			"unable to fetch history",
			"err", err,
		)

		writeError(
			w,
			http.StatusInternalServerError,
			errUnableToFetchHistory,
		)

		return
	}

	writeJSON(w, http.StatusOK, newHistoryResponse(q, points))
}

func parseRateType(v string) (types.RateType, error) {
	t := types.RateType(strings.ToLower(strings.TrimSpace(v)))
	if !t.Valid() {
		return "", errInvalidType
	}

	return t, nil
}

func parseAsOf(asOfRaw string) (time.Time, error) {
	v := strings.TrimSpace(asOfRaw)
	if v == "" {
		return time.Time{}, nil // latest
	}

	t, err := time.Parse(types.DateFormat, v)
	if err != nil {
		return time.Time{}, errInvalidAsOf
	}

	return t, nil
}

func parseTierLow(v string) (decimal.Decimal, error) {
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	if v == "" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, errInvalidTierLow
	}

	return d, nil
}

func parseCurrencySymbol(v string) (types.Currency, error) {
	s := strings.ToUpper(strings.TrimSpace(v))
	if len(s) != 3 {
		return "", errors.New("invalid currency (must be 3 letters)")
	}

	for i := 0; i < 3; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return "", errors.New("invalid currency (must be A-Z)")
		}
	}

	return types.Currency(s), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // Fine to ignore
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := &ErrorResponse{
		Error: err.Error(),
	}

	writeJSON(w, status, resp)
}
