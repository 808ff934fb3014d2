package arbiter

const (
	ErrNilSink         = "a downstream sink is required"
	ErrNoDevicesAdded  = "no devices could be added from the supplied path list"
	ErrSeatUnavailable = "could not assign seat '%s': %w"
	ErrNotInitialized  = "arbiter is closed or was never initialized"
)
