package retry

import (
	"strings"
)

// ClassifyConnection classifies errors seen while establishing the database
// and bus connections at startup
func ClassifyConnection(err error) ErrorType {
	if err == nil {
		return Permanent // No error, shouldn't happen but be safe
	}

	errStr := strings.ToLower(err.Error())

	// Connection slots exhausted on the server side
	if strings.Contains(errStr, "too many clients") ||
		strings.Contains(errStr, "too many connections") ||
		strings.Contains(errStr, "connection limit") {
		return RateLimited
	}

	// Timeouts are retryable
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "timed out") ||
		strings.Contains(errStr, "deadline exceeded") {
		return Retryable
	}

	// Network errors are retryable
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "unexpected eof") ||
		strings.Contains(errStr, "eof") {
		return Retryable
	}

	// Servers still coming up report themselves as unavailable
	if strings.Contains(errStr, "the database system is starting up") ||
		strings.Contains(errStr, "server is not available") ||
		strings.Contains(errStr, "no servers available") {
		return Retryable
	}

	// Everything else (bad credentials, unknown database, bad DSN) is permanent
	return Permanent
}
