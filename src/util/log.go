package util

import (
	"io"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Progress reports the number of completed jobs. A nil *Progress is valid and reports nothing.
type Progress struct {
	bar *progressbar.ProgressBar
}

// ---------------------
// ----- Functions -----
// ---------------------

// SetupLogging installs the default structured logger on stderr. Verbose mode enables debug records.
func SetupLogging(opt Options) {
	slog.SetDefault(NewLogger(os.Stderr, opt.Verbose))
}

// NewLogger returns a text logger writing to w.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewProgress returns a progress bar counting n jobs, or nil if progress display is disabled or stderr is not a
// terminal.
func NewProgress(opt Options, n int, desc string) *Progress {
	if !opt.Progress || n == 0 || !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return &Progress{
		bar: progressbar.NewOptions(n,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(desc),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		),
	}
}

// Add marks one job as completed.
func (p *Progress) Add() {
	if p == nil {
		return
	}
	_ = p.bar.Add(1)
}

// Close finishes the progress display.
func (p *Progress) Close() {
	if p == nil {
		return
	}
	_ = p.bar.Finish()
}
