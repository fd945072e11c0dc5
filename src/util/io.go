package util

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// ---------------------
// ----- Constants -----
// ---------------------

// stdinTimeout is how long ReadSource waits for input on stdin.
const stdinTimeout = 500 * time.Millisecond

// ---------------------
// ----- Functions -----
// ---------------------

// ReadSource reads source code from file or stdin.
// If the Options structure holds a string for source the file will be opened and read.
// Else the function waits for a short period for input on stdin. If no input on stdin is
// provided the function returns an error.
func ReadSource(opt Options) (string, error) {
	if len(opt.Src) > 0 && opt.Src != "-" {
		// Read from file.
		b, err := os.ReadFile(opt.Src)
		if err != nil {
			return "", fmt.Errorf("read source: %w", err)
		}
		return string(b), nil
	}

	// Read stdin.
	c := make(chan string, 1)
	cerr := make(chan error, 1)

	// Concurrently wait for input on stdin.
	go func() {
		b, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			cerr <- err
			return
		}
		c <- string(b)
	}()

	// Select between input from stdin or timer expiry.
	select {
	case <-time.After(stdinTimeout):
		return "", errors.New("expected input from stdin, got none")
	case err := <-cerr:
		return "", fmt.Errorf("read stdin: %w", err)
	case s := <-c:
		return s, nil
	}
}

// WriteOutput writes the complete compiler output s to the output file of opt, or to stdout if no output file is
// given. The output file is only touched once the whole output is available.
func WriteOutput(opt Options, s string) error {
	if len(opt.Out) == 0 {
		w := bufio.NewWriter(os.Stdout)
		if _, err := w.WriteString(s); err != nil {
			return err
		}
		return w.Flush()
	}
	f, err := os.OpenFile(opt.Out, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(s); err != nil {
		_ = f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}
