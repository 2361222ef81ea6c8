package remote

import (
	"errors"
	"fmt"
)

// ErrNetwork indicates no connectivity or a timeout talking to the
// remote store. Background refreshes swallow it and keep serving the
// cache; only explicit user actions surface it, as a retryable notice.
var ErrNetwork = errors.New("network unavailable")

// ServiceError indicates the remote store rejected the call (auth,
// permission, quota, validation). Background refreshes swallow it;
// explicit writes surface it since the user must change something.
type ServiceError struct {
	Code    int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote service rejected call (code %d)", e.Code)
	}
	return fmt.Sprintf("remote service rejected call (code %d): %s", e.Code, e.Message)
}

// PartialBatchError indicates a batched write that may have partially
// applied. The final remote state is unknown; the caller should re-run
// the corresponding reconciliation pass.
type PartialBatchError struct {
	Applied int // ops confirmed applied, -1 when unknown
	Total   int
	Err     error
}

func (e *PartialBatchError) Error() string {
	if e.Applied < 0 {
		return fmt.Sprintf("batch of %d ops in unknown state: %v", e.Total, e.Err)
	}
	return fmt.Sprintf("batch applied %d of %d ops: %v", e.Applied, e.Total, e.Err)
}

func (e *PartialBatchError) Unwrap() error {
	return e.Err
}

// IsNetwork reports whether err is a connectivity failure.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsService reports whether err is a remote rejection, returning the
// code when it is.
func IsService(err error) (int, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}
