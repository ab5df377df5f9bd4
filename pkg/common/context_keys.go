package common

type contextKey string

const (
	RequestIDContextKey  contextKey = "request_id"
	IdentifierContextKey contextKey = "rate_limit_identifier"
	RateLimitContextKey  contextKey = "rate_limit_result"
)
