package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/shiftbook/rosterscan/internal/model"
)

// Fault is a classified extraction failure. It is constructed once at the
// response-parsing boundary; everything downstream works with the kind and
// message only, never with raw bodies or status codes.
type Fault struct {
	Kind    model.ErrorKind
	Message string
	Status  int
}

func (f *Fault) Error() string {
	return fmt.Sprintf("extractor: %s: %s", f.Kind, f.Message)
}

// FaultKind extracts the ErrorKind from an error chain. Unclassified errors
// report ErrKindUnknown.
func FaultKind(err error) model.ErrorKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return model.ErrKindUnknown
}

// FaultMessage returns the user-facing message for an error chain.
func FaultMessage(err error) string {
	var f *Fault
	if errors.As(err, &f) {
		return f.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// sessionExpiredMessage replaces raw auth errors that would leak internal
// token details.
const sessionExpiredMessage = "Your session has expired. Please sign in again."

var tokenLeakPattern = regexp.MustCompile(`(?i)\b(jwt|token|expired)\b`)

// errorBody is the optional error envelope carried by non-2xx responses.
type errorBody struct {
	Error     string `json:"error"`
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
}

// classify builds a Fault for a non-2xx response. An explicit errorType in
// the body wins over the status mapping. Auth messages that look like raw
// token errors are rewritten to a generic session-expired string.
func classify(status int, body []byte) *Fault {
	kind := model.KindForStatus(status)
	message := fmt.Sprintf("extraction service returned status %d", status)

	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		if eb.ErrorType != "" {
			kind = model.ErrorKind(eb.ErrorType)
		}
		switch {
		case eb.Error != "":
			message = eb.Error
		case eb.Message != "":
			message = eb.Message
		}
	}

	if kind == model.ErrKindAuth && tokenLeakPattern.MatchString(message) {
		message = sessionExpiredMessage
	}

	return &Fault{Kind: kind, Message: message, Status: status}
}

func faultf(kind model.ErrorKind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
