// Package mcpserver exposes the turn engine commands as MCP tools.
//
// Every tool maps to one engine operation; tool errors carry the domain
// error code so callers can tell retryable content failures from phase
// rejections.
package mcpserver
