// Package sink persists fully-resolved decisions and forwards them to
// the telemetry surface: a websocket broadcast hub and the one-line
// human summary.
package sink
