package model

// ErrorKind classifies a failed extraction call into the fixed taxonomy
// shared by the remote function and the pipeline.
type ErrorKind string

const (
	// ErrKindAuth means no token, an invalid token, or an expired session.
	ErrKindAuth ErrorKind = "auth"
	// ErrKindConfig means deployment configuration is missing (no function URL).
	ErrKindConfig ErrorKind = "config"
	// ErrKindLimitExceeded means the monthly scan quota is exhausted.
	ErrKindLimitExceeded ErrorKind = "limit_exceeded"
	// ErrKindInvalidInput means the request or image was malformed.
	ErrKindInvalidInput ErrorKind = "invalid_input"
	// ErrKindNetwork means a transport fault or a server-side failure.
	ErrKindNetwork ErrorKind = "network"
	// ErrKindUnknown is anything that could not be classified.
	ErrKindUnknown ErrorKind = "unknown"
)

// KindForStatus maps an HTTP status code to an ErrorKind when the response
// body does not carry an explicit errorType.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return ErrKindAuth
	case status == 429:
		return ErrKindLimitExceeded
	case status == 400:
		return ErrKindInvalidInput
	case status >= 500:
		return ErrKindNetwork
	default:
		return ErrKindUnknown
	}
}
