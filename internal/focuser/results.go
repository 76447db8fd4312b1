package focuser

// Result is the outcome of a focuser command. The integer values are part
// of the client contract and must not change.
type Result int

const (
	Succeeded        Result = 0
	Failed           Result = 1
	Blocked          Result = 2
	InvalidControlIP Result = 3
	NotConnected     Result = 7
	NotDisconnected  Result = 8
	InvalidChannel   Result = 10
	ChannelNotHomed  Result = 11

	// CommunicationFailed is never returned by the daemon. Clients use it
	// when the daemon cannot be reached.
	CommunicationFailed Result = -100
)

// String returns the message shown to operators for r.
func (r Result) String() string {
	switch r {
	case Succeeded:
		return "command succeeded"
	case Failed:
		return "error: command failed"
	case Blocked:
		return "error: another command is already running"
	case InvalidControlIP:
		return "error: command not accepted from this address"
	case NotConnected:
		return "error: focuser is not connected"
	case NotDisconnected:
		return "error: focuser is already connected"
	case InvalidChannel:
		return "error: unknown channel"
	case ChannelNotHomed:
		return "error: channel has not been homed"
	case CommunicationFailed:
		return "error: unable to communicate with the focuser daemon"
	default:
		return "error: unknown result"
	}
}

// Routine reports whether r is expected in normal operation and should not
// be logged above debug level.
func (r Result) Routine() bool {
	return r == Blocked || r == InvalidControlIP
}
