// Package content turns unreliable provider text into validated payloads.
//
// A request goes through one primary call. When the text fails to parse or
// violates the call's contract, exactly one repair call is issued carrying
// the rejected text, the problem and the schema. A second failure is final
// and surfaces as a CONTENT_PARSE or CONTENT_SCHEMA error. Payloads are
// constructed only after validation succeeds.
package content
