//go:build !windows

package logging

import (
	"io"
	"log/syslog"
)

func openSyslog() (io.Writer, error) {
	return syslog.New(syslog.LOG_NOTICE|syslog.LOG_DAEMON, "anytun")
}
