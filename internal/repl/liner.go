package repl

import (
	"os"
	"path/filepath"

	"github.com/peterh/liner"
)

// Liner is a LineReader with line editing and a persistent input history.
type Liner struct {
	*liner.State
	historyFile string
}

// OpenLiner puts the terminal under liner control and loads the history
// file if it exists. Ctrl+C at the prompt aborts it.
func OpenLiner(historyFile string) *Liner {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)

	l := &Liner{State: state, historyFile: historyFile}
	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			state.ReadHistory(f)
			f.Close()
		}
	}
	return l
}

// Close saves the history and restores the terminal.
func (l *Liner) Close() error {
	l.saveHistory()
	return l.State.Close()
}

func (l *Liner) saveHistory() {
	if l.historyFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(l.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(l.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	l.State.WriteHistory(f)
}
