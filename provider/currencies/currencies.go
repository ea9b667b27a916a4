package currencies

import "github.com/sig-0/ibkrrates/storage/types"

var (
	USD types.Currency = "USD"
	CAD types.Currency = "CAD"
	EUR types.Currency = "EUR"
	GBP types.Currency = "GBP"
	CHF types.Currency = "CHF"
	JPY types.Currency = "JPY"
)
