package tune

import "errors"

// Error taxonomy shared by the decoders, the analysis pipeline and the
// catalog service. Callers match with errors.Is; detail is attached with
// fmt.Errorf("...: %w", ErrX).
var (
	// ErrUnsupportedFormat is returned when no decoder recognises the
	// container or its bit depth.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrCorruptAudio is returned for a recognised but malformed container.
	ErrCorruptAudio = errors.New("corrupt audio")
	// ErrEmptyAudio is returned when decoding yields zero samples or framing
	// yields zero frames.
	ErrEmptyAudio = errors.New("audio file is empty")
	// ErrInvalidParameter is returned for caller errors such as an
	// out-of-range top_k.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrEstimationUnavailable marks an absent tempo or key. It is never
	// returned from Analyze; estimators report absence with ok=false.
	ErrEstimationUnavailable = errors.New("estimation unavailable")
)

// IsClientError reports whether err stems from the request itself rather
// than from the server.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrCorruptAudio) ||
		errors.Is(err, ErrEmptyAudio) ||
		errors.Is(err, ErrInvalidParameter)
}
