package signal

// Canonical signal numbers exposed to scripts. The values follow the
// common POSIX assignments on every platform so scripts stay portable;
// SIGBREAK keeps the Windows CRT value 21.
const (
	SIGINT   = 2
	SIGKILL  = 9
	SIGPIPE  = 13
	SIGTERM  = 15
	SIGBREAK = 21
)

// maxSignum bounds the accepted signal number range. Real signal numbers
// fit in [1, 64] on every supported platform (64 covers Linux RT signals).
const maxSignum = 64

// ValidSignum reports whether signum is inside the accepted range.
// Range-checking happens before any OS state is touched; whether the
// platform can actually trap the number is decided by the disposition
// call itself.
func ValidSignum(signum int) bool {
	return signum >= 1 && signum <= maxSignum
}

// Name returns a human-readable name for the canonical signal numbers,
// falling back to the decimal value.
func Name(signum int) string {
	switch signum {
	case SIGINT:
		return "SIGINT"
	case SIGKILL:
		return "SIGKILL"
	case SIGPIPE:
		return "SIGPIPE"
	case SIGTERM:
		return "SIGTERM"
	case SIGBREAK:
		return "SIGBREAK"
	default:
		return "signal(" + itoa(signum) + ")"
	}
}

// itoa avoids pulling strconv into the capture path.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b [8]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		b[i] = '-'
	}
	return string(b[i:])
}
