// Package goroutine wraps background work with panic recovery.
package goroutine

import (
	"fmt"
	"runtime/debug"

	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// SafeGo runs fn in a goroutine. A panic inside fn is logged with its stack
// instead of taking down the process; name identifies the task in the log.
func SafeGo(log logger.Interface, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("background task panicked",
					"task", name,
					"panic", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}
