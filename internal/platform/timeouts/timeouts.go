// Package timeouts defines shared timeout constants used across euroturn.
// Centralizing these values prevents drift between the CLI and MCP surfaces.
package timeouts

import "time"

// ProviderRequest caps a single generative provider round trip.
const ProviderRequest = 90 * time.Second

// Operation is the shortest deadline a command gets. It covers a resolve:
// two primary requests and at most two repair requests.
const Operation = 6 * time.Minute

// ForProviderCalls bounds a command that may issue up to calls provider
// requests, repairs included.
func ForProviderCalls(calls int) time.Duration {
	if d := time.Duration(calls) * ProviderRequest; d > Operation {
		return d
	}
	return Operation
}

// StoreBusy is how long SQLite waits on a locked database before failing.
const StoreBusy = 5 * time.Second

// Shutdown limits how long telemetry and servers wait to flush on exit.
const Shutdown = 5 * time.Second
