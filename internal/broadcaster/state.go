package broadcaster

// State of the broadcaster.
type State int32

const (
	StateLoaded State = iota
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// StopReason is used for structured shutdown tracing.
type StopReason string

const (
	StopNone          StopReason = ""
	StopConfigFailed  StopReason = "config_failed"
	StopConnectFailed StopReason = "connect_failed"
	StopReloadFailed  StopReason = "reload_failed"
	StopSendFailed    StopReason = "send_failed"
	StopEncodeFailed  StopReason = "encode_failed"
	StopCanceled      StopReason = "canceled"
)
