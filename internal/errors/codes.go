package errors

// Error codes for Quill. Codes are stable identifiers used in logs and in
// Is() comparisons; messages are free to change.
const (
	// ErrCodeConfigMissing indicates required environment variables are absent.
	ErrCodeConfigMissing = "ERR_CONFIG_MISSING"

	// ErrCodeConfigInvalid indicates a malformed configuration value.
	ErrCodeConfigInvalid = "ERR_CONFIG_INVALID"

	// ErrCodeFileUnavailable indicates a source file vanished or became
	// unreadable mid-scan. Callers skip the file and continue the run.
	ErrCodeFileUnavailable = "ERR_FILE_UNAVAILABLE"

	// ErrCodeRateLimited indicates the embedding backend rejected a request
	// due to rate limiting. Retryable with backoff.
	ErrCodeRateLimited = "ERR_RATE_LIMITED"

	// ErrCodeCountMismatch indicates the embedding backend returned a
	// different number of vectors than texts. Fatal: the batch results are
	// partial or corrupted and must not be padded or truncated.
	ErrCodeCountMismatch = "ERR_EMBEDDING_COUNT_MISMATCH"

	// ErrCodeSchemaMismatch indicates the search index is missing required
	// fields. Fatal before any write.
	ErrCodeSchemaMismatch = "ERR_SCHEMA_MISMATCH"

	// ErrCodePartialUpload indicates some documents in an upload batch were
	// rejected. Reported, not fatal.
	ErrCodePartialUpload = "ERR_PARTIAL_UPLOAD"

	// ErrCodeBackend indicates a non-retryable failure from a remote backend.
	ErrCodeBackend = "ERR_BACKEND"

	// ErrCodeInternal indicates an unexpected internal failure.
	ErrCodeInternal = "ERR_INTERNAL"
)

// retryableCodes marks codes where the operation may be retried.
var retryableCodes = map[string]bool{
	ErrCodeRateLimited: true,
}

func isRetryableCode(code string) bool {
	return retryableCodes[code]
}
