package common

const (
	UserIDHeader          = "X-User-ID"
	RequestIDHeader       = "X-Request-Id"
	ClaimedMimeTypeHeader = "X-Claimed-Mime-Type"

	RateLimitLimitHeader     = "X-RateLimit-Limit"
	RateLimitRemainingHeader = "X-RateLimit-Remaining"
	RateLimitResetHeader     = "X-RateLimit-Reset"
)
