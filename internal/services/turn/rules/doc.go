// Package rules provides the default pure collaborators of the turn engine:
// pressure decay, external modifier application, Lua-backed win-condition
// evaluation and the progress function.
package rules
