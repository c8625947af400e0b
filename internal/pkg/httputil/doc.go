// Package httputil holds the JSON response helpers shared by the API
// handlers: the {"error"} and {"message","result"} envelopes, request
// decoding, and masking of internal errors.
package httputil
