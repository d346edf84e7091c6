// Package country loads the static game catalog: active countries with their
// starting metrics, ambitions and victory conditions, the external actors
// with their craziness ranges, and the starting EU state.
package country
