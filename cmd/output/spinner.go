package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const spinnerInterval = 100 * time.Millisecond

var spinnerFrames = []string{
	"⣀⣀", "⣄⣀", "⣤⣀", "⣦⣄", "⣶⣤", "⣿⣦", "⣿⣷", "⣿⣿",
	"⣷⣿", "⣦⣿", "⣤⣷", "⣄⣦", "⣀⣤", "⣀⣄",
}

// Spinner animates a progress indicator on a terminal while a slow call runs.
type Spinner struct {
	w       io.Writer
	message string
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// StartSpinner starts animating message on w. Nothing is drawn when w is not
// a terminal. Stop must be called before writing other output to w.
func StartSpinner(w io.Writer, message string) *Spinner {
	s := &Spinner{w: w, message: message, stop: make(chan struct{}), done: make(chan struct{})}
	if !IsTerminal(w) {
		close(s.done)
		return s
	}
	go s.run()
	return s
}

func (s *Spinner) run() {
	defer close(s.done)
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	_, _ = fmt.Fprint(s.w, "\033[?25l")
	for i := 0; ; i++ {
		_, _ = fmt.Fprintf(s.w, "\r%s %s", spinnerFrames[i%len(spinnerFrames)], s.message)
		select {
		case <-s.stop:
			_, _ = fmt.Fprint(s.w, "\r\033[2K\033[?25h")
			return
		case <-ticker.C:
		}
	}
}

// Stop clears the indicator and restores the cursor. It is safe to call more than once.
func (s *Spinner) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}
