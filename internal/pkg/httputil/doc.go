// Package httputil provides shared HTTP response/request utilities for handlers.
//
// Handlers use these helpers instead of writing raw http.ResponseWriter calls,
// so every error leaves the server as {"success": false, "error": "..."}.
package httputil
