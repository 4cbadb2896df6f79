package metadata

import "context"

// Fetcher is the backend boundary. Implementations talk RFC (or anything
// else) to the remote catalog; the engine never sees connection handling.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use; the
//   engine bounds how many calls run at once.
// - Errors: returned errors must be classified with the package sentinels:
//   ErrNotFound for a confirmed missing function, ErrUnauthorized for
//   rejected credentials, ErrUnavailable for connection-level failures.
//   Anything else is treated as a plain fetch failure.
// - Context: Fetch must honor cancellation and deadlines.
type Fetcher interface {
	// Fetch retrieves the raw catalog record for one function, described
	// in the given backend language code.
	Fetch(ctx context.Context, functionName, languageCode string) (*RawMetadata, error)

	// SystemInfo reports the backend release for version classification.
	SystemInfo(ctx context.Context) (SystemInfo, error)
}
