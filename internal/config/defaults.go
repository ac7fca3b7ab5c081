package config

import "time"

// Logging defaults.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false
)

// Output defaults.
const (
	DefaultOutputFormat     = FormatText
	DefaultOutputColor      = true
	DefaultOutputTimezone   = "Local"
	DefaultOutputFilesLimit = 20
)

// History paging defaults.
const (
	DefaultHistoryPageSize    = 20
	DefaultHistoryOldestFirst = false
)

// State reconstruction defaults.
const (
	DefaultStateLenientDuplicateAdds = false
)

// Storage defaults.
const (
	DefaultStorageValidateActions      = false
	DefaultStorageCacheMaxBytes        = 64 << 20
	DefaultStorageRetryMaxTries        = 4
	DefaultStorageRetryInitialInterval = 200 * time.Millisecond
	DefaultStorageRetryMaxInterval     = 5 * time.Second
	DefaultStorageS3PathStyle          = false
)

// Observability defaults.
const (
	DefaultObservabilityOTLPInsecure   = false
	DefaultObservabilitySampleRatio    = 0.0
	DefaultObservabilityDebugTrace     = false
	DefaultObservabilityTraceVerbose   = false
	DefaultObservabilityShutdownSecond = 5
)
