//go:build unix

package xregistry

import (
	"os"

	"golang.org/x/sys/unix"
)

func defaultReopenSignals() []os.Signal {
	return []os.Signal{unix.SIGHUP}
}
