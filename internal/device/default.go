package device

import (
	"errors"
	"runtime"

	"senseled/internal/frame"
	appLog "senseled/internal/log"
)

// recorderLimit bounds the fallback recorder so a long-running dry run does
// not grow without limit.
const recorderLimit = 256

// Default returns the Transport the main program should use.
//
// Order:
//  1. on Linux, open the real I2C device and probe it with a clear frame
//  2. otherwise, or if any step fails, fall back to an in-memory Recorder
//
// The fallback keeps the web UI and dry runs working on machines without
// the hardware. The returned error is the reason for the fallback (nil when
// the real device is in use); it is informational only.
func Default(opts Options) (Transport, error) {
	if runtime.GOOS != "linux" {
		err := errors.New("device: i2c unavailable on this platform")
		appLog.Warn("using in-memory transport", "reason", err.Error(), "goos", runtime.GOOS)
		return NewRecorder(recorderLimit), err
	}

	t, err := Open(opts)
	if err != nil {
		appLog.Error("i2c open failed; using in-memory transport", err)
		return NewRecorder(recorderLimit), err
	}

	blank := frame.Clear()
	if err := t.Write(blank.Bytes()); err != nil {
		appLog.Error("i2c probe write failed; using in-memory transport", err)
		_ = t.Close()
		return NewRecorder(recorderLimit), err
	}
	return t, nil
}
