package jobs

import (
	"fmt"
	"strings"
	"time"
)

// ProgressBar renders an in-place progress line on stdout with percentage,
// ETA and rate.
type ProgressBar struct {
	description string
	total       int
	current     int
	startTime   time.Time
	width       int
}

// NewProgressBar creates a progress bar for the given coordinate total.
func NewProgressBar(description string, total int) *ProgressBar {
	return &ProgressBar{
		description: description,
		total:       total,
		startTime:   time.Now(),
		width:       50,
	}
}

// Update advances the progress bar. The displayed count never decreases.
func (pb *ProgressBar) Update(current int) {
	if current > pb.current {
		pb.current = current
	}
	pb.render()
}

// Finish completes the progress bar and moves to a new line.
func (pb *ProgressBar) Finish() {
	pb.current = pb.total
	pb.render()
	fmt.Println()
}

// Current returns the displayed count.
func (pb *ProgressBar) Current() int {
	return pb.current
}

// render draws the progress bar, overwriting the previous line.
func (pb *ProgressBar) render() {
	percentage := float64(pb.current) / float64(pb.total)
	if percentage > 1.0 {
		percentage = 1.0
	}

	filled := int(percentage * float64(pb.width))
	if filled > pb.width {
		filled = pb.width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat(" ", pb.width-filled)

	elapsed := time.Since(pb.startTime)
	var eta time.Duration
	var rate float64
	if pb.current > 0 {
		rate = float64(pb.current) / elapsed.Seconds()
		if percentage > 0 {
			totalTime := time.Duration(float64(elapsed) / percentage)
			eta = totalTime - elapsed
		}
	}

	line := fmt.Sprintf("\r%s: %3.0f%%|%s| %d/%d",
		pb.description,
		percentage*100,
		bar,
		pb.current,
		pb.total,
	)
	if eta > 0 {
		line += fmt.Sprintf(" [%s<%s", formatDuration(elapsed), formatDuration(eta))
	} else {
		line += fmt.Sprintf(" [%s<00:00", formatDuration(elapsed))
	}
	if rate > 0 {
		line += fmt.Sprintf(", %.2fcoord/s", rate)
	}
	line += "]"

	fmt.Print(line)
}

// formatDuration formats a duration as MM:SS.
func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
