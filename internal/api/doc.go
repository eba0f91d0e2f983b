// Package api serves the spotter engine over HTTP with JSON bodies.
//
// Executors and proposers identify themselves with the X-Spotter-Caller
// header (a 0x-hex ledger identity). The header is trusted: authenticating
// callers belongs to whatever fronts this server.
//
// Domain failures are returned as
//
//	{"error": {"codespace": "spotter", "code": 2, "kind": "AlreadyLoaded", "message": "..."}}
//
// with an HTTP status chosen per kind.
package api
