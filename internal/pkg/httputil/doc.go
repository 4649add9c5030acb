// Package httputil provides shared HTTP response/request utilities for handlers.
//
// Handlers use these helpers instead of raw http.ResponseWriter calls so that
// JSON formatting, error envelopes and request validation stay consistent.
package httputil
