// Package utils provides general-purpose helper utilities used across the
// content sync engine: id generation, body checksums, bearer-token
// inspection, HTTP response writing and HTTP client construction.
package utils
