//go:build windows

package logging

import (
	"errors"
	"io"
)

func openSyslog() (io.Writer, error) {
	return nil, errors.New("syslog target is not supported on windows")
}
