package overseer

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// notifySystemdReady tells systemd the initial pool fill is complete, so
// a Type=notify unit's ExecStart is considered started. It is a no-op
// outside systemd (NOTIFY_SOCKET unset), per daemon.SdNotify's own
// contract, so it is always safe to call unconditionally once enabled.
func notifySystemdReady() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
}

// notifySystemdStopping tells systemd the shutdown sequence has begun,
// matching the unit's expectations during a controlled stop.
func notifySystemdStopping() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// systemdWatchdogInterval returns half of the unit's configured
// WatchdogSec, the conventional ping cadence recommended by
// sd_watchdog_enabled(3), or 0 if the watchdog is not enabled for this
// process.
func systemdWatchdogInterval() time.Duration {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return 0
	}
	return interval / 2
}

func notifySystemdWatchdog() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
}
