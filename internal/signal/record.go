package signal

// Origin identifies the delivery path a signal arrived through.
type Origin uint8

// Delivery origins.
const (
	// OriginNative is a signal delivered by the OS signal machinery.
	OriginNative Origin = iota
	// OriginConsole is a console control event translated to a signal
	// number (Windows only).
	OriginConsole
)

// String returns the origin name.
func (o Origin) String() string {
	switch o {
	case OriginNative:
		return "native"
	case OriginConsole:
		return "console"
	default:
		return "unknown"
	}
}

// Record is one pending signal. Records are immutable once written:
// capture creates them, the dispatcher consumes and discards them.
type Record struct {
	// Signum is the canonical signal number.
	Signum int
	// Origin is the delivery path the signal arrived through.
	Origin Origin
}
