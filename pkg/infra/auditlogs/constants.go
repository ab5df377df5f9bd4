package auditlogs

const (
	EventTypeInputBlocked      = "input.blocked"
	EventTypeInputFlagged      = "input.flagged"
	EventTypeUploadRejected    = "upload.rejected"
	EventTypeRateLimitExceeded = "ratelimit.exceeded"
)

const (
	CategoryRunTimeSecurity = "runtime_security"
)

const (
	StatusBlocked = "blocked"
	StatusFlagged = "flagged"
)

const (
	TargetTypeChatInput = "chat_input"
	TargetTypeUpload    = "upload"
	TargetTypeAction    = "action"
)
