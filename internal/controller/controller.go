// Package controller holds the process-wide power monitor controller.
// There is exactly one per process, created on first use by Instance.
package controller

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	observer "github.com/jeremyforan/hwmonitor"
)

// PowerMonitorController is the single point of access to the power
// monitoring hardware.
type PowerMonitorController struct{}

var (
	once     sync.Once
	instance *PowerMonitorController

	// mu guards out. Construction and every write take it, so a SetOutput
	// that returns is seen by all later output, including the creation line.
	mu  sync.Mutex
	out io.Writer = os.Stdout

	// constructions so far. Only read by tests; never above 1.
	created atomic.Int32
)

// Instance returns the controller, creating it on the first call. Concurrent
// first callers block until construction finishes and all get the same value.
func Instance() *PowerMonitorController {
	once.Do(func() {
		instance = &PowerMonitorController{}
		created.Add(1)
		emit("Created a PowerMonitorController")
	})
	return instance
}

// SetOutput directs all controller output to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// MonitorPower reads the current power draw.
func (c *PowerMonitorController) MonitorPower() { emit("Power Monitored") }

// ManageFault handles a reported power fault.
func (c *PowerMonitorController) ManageFault() { emit("Manage Fault") }

// AdjustPower changes the power budget.
func (c *PowerMonitorController) AdjustPower() { emit("Adjust Power") }

// Observer adapts the controller so a publisher polls power on every tick.
func (c *PowerMonitorController) Observer() observer.Observer {
	return observer.NewObserver("Power Monitor Controller", c.MonitorPower)
}

func emit(msg string) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(out, msg)
}
