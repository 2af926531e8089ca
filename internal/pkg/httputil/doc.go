// Package httputil writes the JSON bodies and error envelopes every handler
// returns, so clients always see {"error", "code"} on failure.
package httputil
