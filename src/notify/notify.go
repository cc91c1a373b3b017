// Package notify tells the user about problems they need to act on, as opposed to
// problems in their code.
package notify

import (
	"fmt"
	"sync"

	"github.com/mypyrun/mypyrun/src/cli/logging"
)

var log = logging.Log

// A Notifier is told when mypy can't be run at all.
type Notifier interface {
	// NoInterpreter is called when there's no Python interpreter to find mypy with.
	NoInterpreter()
	// InstallChecker is called when there's an interpreter but mypy isn't installed for it.
	InstallChecker(interpreter string)
	// AbnormalExit is called when mypy fails without reporting anything.
	AbnormalExit(detail string)
}

// A LogNotifier implements Notifier by logging each distinct notification once.
type LogNotifier struct {
	seen  map[string]bool
	mutex sync.Mutex
}

// NewLogNotifier returns a new LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{seen: map[string]bool{}}
}

// NoInterpreter implements the Notifier interface.
func (n *LogNotifier) NoInterpreter() {
	n.once("No Python interpreter configured; set checker.interpreter or checker.path in .mypyrunconfig")
}

// InstallChecker implements the Notifier interface.
func (n *LogNotifier) InstallChecker(interpreter string) {
	n.once("mypy is not installed for %s; try `%s -m pip install mypy`", interpreter, interpreter)
}

// AbnormalExit implements the Notifier interface.
func (n *LogNotifier) AbnormalExit(detail string) {
	if detail == "" {
		detail = "(no output)"
	}
	n.once("mypy exited abnormally: %s", detail)
}

func (n *LogNotifier) once(format string, args ...interface{}) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	msg := fmt.Sprintf(format, args...)
	if n.seen[msg] {
		return
	}
	n.seen[msg] = true
	log.Error("%s", msg)
}
