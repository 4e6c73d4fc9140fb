package status

import "errors"

var (
	ErrUnauthenticated  = errors.New("lifecycle: caller is not authenticated")
	ErrInvalidArgument  = errors.New("lifecycle: missing or invalid argument")
	ErrEventNotFound    = errors.New("lifecycle: event not found")
	ErrUserNotFound     = errors.New("lifecycle: user document not found")
	ErrPermissionDenied = errors.New("lifecycle: transition not permitted")
)
