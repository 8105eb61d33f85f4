package port

// ErrorTracker reports unexpected errors to an external error-tracking service.
type ErrorTracker interface {
	CaptureError(err error, tags map[string]string)
}
