package app

import "nowplaying/internal/broadcaster"

type StopReason = broadcaster.StopReason

const (
	StopSIGINT        StopReason = "sigint"
	StopSIGTERM       StopReason = "sigterm"
	StopConfigFailed             = broadcaster.StopConfigFailed
	StopConnectFailed            = broadcaster.StopConnectFailed
	StopFatalError    StopReason = "fatal_error"
)
