// Package monitoring routes the bridge's diagnostic log lines. Components
// take a Prefixed logger when they are built; tests mute or record output
// with SetLogger.
package monitoring

import (
	"fmt"
	"log"
	"sync"
)

// Logf receives every diagnostic line. Replace it with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger installs f as Logf. A nil f discards all output.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	Logf = f
}

// Prefixed returns a logger that tags every line with "[component] ". It
// looks up Logf on each call, so SetLogger also applies to loggers handed
// out earlier.
func Prefixed(component string) func(format string, v ...interface{}) {
	prefix := fmt.Sprintf("[%s] ", component)
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}

// Recorder keeps formatted log lines in memory. Its Logf method can be
// passed to SetLogger and is safe to call from several goroutines.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *Recorder) Logf(format string, v ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, v...))
}

// Lines returns a copy of the recorded lines.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}
