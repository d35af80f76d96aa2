package domain

import "errors"

// Error taxonomy shared by the adapters and the pipeline. Adapters wrap these
// with fmt.Errorf("%w: ...") so callers can branch with errors.Is.
var (
	// ErrConfig reports a missing or unreadable run configuration or catalog.
	ErrConfig = errors.New("config error")

	// ErrNetwork reports a transport failure or a non-200 webservice response.
	ErrNetwork = errors.New("network error")

	// ErrDecode reports a malformed exchange payload.
	ErrDecode = errors.New("decode error")

	// ErrEmptyData reports a well-formed payload without observations for the
	// requested station.
	ErrEmptyData = errors.New("empty data")
)
