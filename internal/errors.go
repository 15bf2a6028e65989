package marketlens

import "errors"

// Sentinel errors for the cache and discovery domain.
var (
	// ErrStorageUnavailable means the backing medium of a cache store could
	// not be opened or reached. Surfaced to callers, never retried here.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrDiscoveryExhausted means every discovery attempt failed or came
	// back empty. It never reaches data callers; the discovery service maps
	// it to the static default descriptor set.
	ErrDiscoveryExhausted = errors.New("discovery attempts exhausted")
)

// RemoteFallbackMessage is the last resort error text when a backend call
// fails without a body error or a transport message.
const RemoteFallbackMessage = "request failed"
