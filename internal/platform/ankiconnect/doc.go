// Package ankiconnect implements the delivery client for the AnkiConnect
// HTTP RPC protocol exposed by a locally running Anki instance.
//
// The protocol is a single POST endpoint taking {action, version, params}
// and returning {result, error}. Failures are classified into transient
// (Anki not running, timeout, malformed response) and permanent (the
// application rejected the payload); the "note is a duplicate" rejection is
// treated as a successful delivery so that retried cards never create
// duplicate notes.
package ankiconnect
