// Package session models the trading-day calendar: market hours, the
// initial-balance window, the no-new-positions cutoff and the
// open-interest baseline capture time, all in market-local time.
package session
