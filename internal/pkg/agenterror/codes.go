package agenterror

// Pipeline error codes.
const (
	CodeInvalidConfig   = "INVALID_CONFIG"
	CodeMissingAPIKey   = "MISSING_API_KEY"
	CodeTransport       = "TRANSPORT_FAILURE"
	CodeServerRetryable = "SERVER_RETRYABLE"
	CodeServerTerminal  = "SERVER_TERMINAL"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeCircuitOpen     = "CIRCUIT_OPEN"
	CodeAborted         = "ABORTED"
	CodeStorageDegraded = "STORAGE_DEGRADED"
	CodeInternalError   = "INTERNAL_ERROR"
)

var (
	ErrCodeInvalidConfig   = NewConfig(CodeInvalidConfig, "Invalid agent configuration", nil)
	ErrCodeMissingAPIKey   = NewConfig(CodeMissingAPIKey, "Missing API key", nil)
	ErrCodeCircuitOpen     = New(CodeCircuitOpen, "Circuit breaker is open", KindCircuitOpen)
	ErrCodeAborted         = New(CodeAborted, "Operation aborted", KindAborted)
	ErrCodeStorageDegraded = New(CodeStorageDegraded, "Persistent store unavailable", KindStorage)
	ErrCodeInternalError   = NewInternal(CodeInternalError, "Internal error", nil)
)

// Statuses the retry engine treats as retryable, per the ingestion contract.
var retryableStatuses = map[int]bool{
	408: true,
	425: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// Statuses that will fail again with the same payload.
var terminalStatuses = map[int]bool{
	400: true,
	401: true,
	403: true,
	404: true,
	409: true,
	410: true,
	422: true,
}
