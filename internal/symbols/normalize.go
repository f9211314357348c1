package symbols

import "strings"

// Normalize converts the common ways a futures symbol is written to Binance
// style: uppercase without separators and BTC instead of XBT.
//
//	btc-usdt       -> BTCUSDT
//	BTC/USDT       -> BTCUSDT
//	BTC-USDT-SWAP  -> BTCUSDT
//	XBTUSDT        -> BTCUSDT
//
// Multiplier prefixes such as 1000PEPEUSDT are real Binance contracts and are
// kept.
func Normalize(sym string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	sym = strings.TrimSuffix(sym, "-SWAP")
	sym = strings.ReplaceAll(sym, "-", "")
	sym = strings.ReplaceAll(sym, "/", "")
	sym = strings.ReplaceAll(sym, "_", "")
	if strings.HasPrefix(sym, "XBT") {
		sym = "BTC" + sym[3:]
	}
	return sym
}
