//go:build !unix

package xregistry

import "os"

func defaultReopenSignals() []os.Signal {
	return nil
}
