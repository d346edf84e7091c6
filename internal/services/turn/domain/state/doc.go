// Package state defines the value types shared by the turn engine: country
// metrics, the EU singleton, per-round events, action variants, locks, turn
// history, snapshots and game metadata.
//
// Values in this package carry no behavior beyond small arithmetic and
// parsing helpers; persistence and sequencing live in storage and engine.
package state
