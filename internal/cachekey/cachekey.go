// Package cachekey builds the deterministic string keys under which fetched
// analytics payloads are cached. A key is the resource name joined with its
// parameter values in their natural order; callers must not reorder or
// canonicalize values, so identical inputs always map to identical keys.
package cachekey

import "strings"

// Null is the sentinel stored in place of an absent optional parameter.
// Keeping the slot occupied keeps key shape stable between calls that
// supply the parameter and calls that omit it.
const Null = "null"

const sep = ":"

// Build joins a resource name and its ordered parameters into one key.
// Empty parameter values become the Null sentinel.
func Build(resource string, params ...string) string {
	if len(params) == 0 {
		return resource
	}
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, resource)
	for _, p := range params {
		if p == "" {
			p = Null
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, sep)
}

// Securities keys the tradable-securities list for an exchange.
func Securities(exchange string) string {
	return Build("securities", exchange)
}

// ContractInfo keys contract metadata for a symbol.
func ContractInfo(exchange, symbol string) string {
	return Build("contract_info", exchange, symbol)
}

// OptionChain keys an option chain snapshot for a symbol and expiry.
func OptionChain(exchange, symbol, expiry string) string {
	return Build("option_chain", exchange, symbol, expiry)
}

// SingleAnalysis keys one symbol/expiry analysis run. instrument, optionType
// and strike are optional and keep their slots via the Null sentinel.
func SingleAnalysis(exchange, symbol, expiry, instrument, optionType, strike string) string {
	return Build("single_analysis", exchange, symbol, expiry, instrument, optionType, strike)
}

// BatchAnalysis keys the whole-exchange batch analysis result.
func BatchAnalysis(exchange string) string {
	return Build("batch_analysis", exchange)
}

// FuturesData keys futures quotes for a symbol.
func FuturesData(exchange, symbol string) string {
	return Build("futures_data", exchange, symbol)
}

// DerivativesHistorical keys a historical derivatives query over a date range.
func DerivativesHistorical(exchange, symbol, from, to string) string {
	return Build("derivatives_historical", exchange, symbol, from, to)
}
