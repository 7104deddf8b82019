// Package limits centralizes the memory-safety caps shared by every
// component that reads, writes, or streams blocks. No component should
// hardcode one of these numbers directly.
package limits

const (
	// MaxBlockSizeBytes is the UTF-8 byte-length ceiling for a single
	// block's data payload.
	MaxBlockSizeBytes = 1 << 20 // 1 MiB

	// MaxBlockDataLength is the character-length ceiling for a single
	// block's data payload, checked independently of MaxBlockSizeBytes.
	MaxBlockDataLength = 10_000

	// DefaultBatchSize is the page size used by keyset pagination and
	// server-side cursors when the caller does not specify one.
	DefaultBatchSize = 1_000

	// MaxBatchSize is the hard ceiling on any caller-supplied batch or
	// max-results size.
	MaxBatchSize = 10_000

	// DefaultMaxSearchResults bounds wildcard/metadata search results
	// when the caller does not specify max_results.
	DefaultMaxSearchResults = 10_000

	// SafeExportLimit is a warning threshold: exports above this size
	// are still streamed, but callers are warned about duration.
	SafeExportLimit = 100_000

	// MaxExportLimit is a second, higher warning threshold. Export
	// proceeds unconditionally beyond it (streaming never OOMs).
	MaxExportLimit = 500_000

	// LargeRollbackThreshold gates whether recovery's bounded-rollback
	// strategy is attempted automatically.
	LargeRollbackThreshold = 100_000

	// ProgressReportInterval is how often (in blocks) long-running
	// streaming deletes (rollback) invoke their progress callback.
	ProgressReportInterval = 5_000

	// MaxJSONMetadataIterations bounds defensive loops over
	// custom_metadata maps so a hostile/corrupt map can't spin forever.
	MaxJSONMetadataIterations = 100

	// DefaultRollbackSafetyMargin is the default fraction applied to
	// LargeRollbackThreshold when recovery decides whether a bounded
	// rollback is "small enough" to run automatically.
	DefaultRollbackSafetyMargin = 0.15

	// MaxDiagnosisSamples bounds how many individual corrupted-block
	// records a diagnosis report carries, so diagnosing a badly damaged
	// multi-million-block chain still returns in bounded memory.
	MaxDiagnosisSamples = 100
)
