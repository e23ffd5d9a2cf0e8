package core

// Process exit codes. Signal exits follow the Unix 128+signum convention so
// a supervisor can tell an operator-initiated stop from a crash.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
	ExitCodeSIGINT  = 130 // 128 + SIGINT(2)
	ExitCodeSIGTERM = 143 // 128 + SIGTERM(15)
)

// ExitCodeName returns the name logged at shutdown for an exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "success"
	case ExitCodeError:
		return "error"
	case ExitCodeSIGINT:
		return "interrupted by SIGINT"
	case ExitCodeSIGTERM:
		return "terminated by SIGTERM"
	default:
		return "unknown"
	}
}

// IsSignalExit reports whether the code came from a terminating signal.
func IsSignalExit(code int) bool {
	return code == ExitCodeSIGINT || code == ExitCodeSIGTERM
}
