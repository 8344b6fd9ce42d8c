package broadcaster

import "errors"

// Every error below is fatal for the process; nothing is retried.
var (
	ErrConfig  = errors.New("config load failed")
	ErrConnect = errors.New("connect failed")
	ErrReload  = errors.New("config reload failed")
	ErrSend    = errors.New("send failed")
	ErrEncode  = errors.New("encode failed")

	// ErrTerminated is returned by Run on a broadcaster that already stopped.
	ErrTerminated = errors.New("broadcaster terminated")
	// ErrRunning is returned by a second Run while the first is still looping.
	ErrRunning = errors.New("broadcaster already running")
)
