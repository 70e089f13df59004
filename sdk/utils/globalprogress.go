// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"fmt"
	"io"
	"sync"
	"time"
)

/* ------------ single-line progress for transfers ------------ */

// Progress renders a throttled one-line progress indicator. It is safe for
// concurrent use; parts completing on different goroutines may report at once.
type Progress struct {
	mu         sync.Mutex
	w          io.Writer
	label      string
	totalBytes int64
	doneBytes  int64
	spinIdx    int
	lastTick   time.Time
}

var spinner = []rune{'|', '/', '-', '\\'}

// NewProgress writes to w; totalBytes <= 0 means unknown and shows a spinner.
func NewProgress(w io.Writer, label string, totalBytes int64) *Progress {
	return &Progress{w: w, label: label, totalBytes: totalBytes}
}

func (gp *Progress) Add(delta int64) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.doneBytes += delta
	gp.render(false)
}

// Done returns the bytes counted so far.
func (gp *Progress) Done() int64 {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.doneBytes
}

// Finish forces a last render and terminates the line.
func (gp *Progress) Finish() {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.render(true)
	fmt.Fprintln(gp.w)
}

// PartsFunc adapts the bar to part-level completion callbacks: each
// completed part counts for partSize bytes, the last one for the rest.
func (gp *Progress) PartsFunc(partSize int64) func(completed, total int) {
	return func(completed, total int) {
		gp.mu.Lock()
		defer gp.mu.Unlock()
		done := int64(completed) * partSize
		if completed == total || (gp.totalBytes > 0 && done > gp.totalBytes) {
			done = gp.totalBytes
		}
		gp.doneBytes = done
		gp.render(completed == total)
	}
}

func human(n int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)
	switch {
	case n >= GB:
		return fmt.Sprintf("%.2f GB", float64(n)/float64(GB))
	case n >= MB:
		return fmt.Sprintf("%.2f MB", float64(n)/float64(MB))
	case n >= KB:
		return fmt.Sprintf("%.2f KB", float64(n)/float64(KB))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// caller holds gp.mu
func (gp *Progress) render(force bool) {
	// throttling: ~10 updates per second
	if !force && time.Since(gp.lastTick) < 100*time.Millisecond {
		return
	}
	gp.lastTick = time.Now()

	if gp.totalBytes > 0 {
		if gp.doneBytes > gp.totalBytes {
			gp.doneBytes = gp.totalBytes
		}
		pct := float64(gp.doneBytes) / float64(gp.totalBytes) * 100
		fmt.Fprintf(gp.w, "\r%s: %6.2f%% (%s / %s)   ",
			gp.label, pct, human(gp.doneBytes), human(gp.totalBytes))
		return
	}
	ch := spinner[gp.spinIdx%len(spinner)]
	gp.spinIdx++
	fmt.Fprintf(gp.w, "\r%s: [%c] %s   ", gp.label, ch, human(gp.doneBytes))
}
