package cli

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// stageProgress draws one bar per ingest stage on a terminal and stays silent otherwise.
type stageProgress struct {
	mu      sync.Mutex
	enabled bool
	stage   string
	bar     *progressbar.ProgressBar
	start   time.Time
}

func newStageProgress() *stageProgress {
	return &stageProgress{enabled: isTerminal(os.Stderr)}
}

func newBar(total int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}

func stageLabel(stage string) string {
	switch stage {
	case "label":
		return "Labeling"
	case "embed":
		return "Embedding"
	}
	return stage
}

// Update matches usecase.ProgressFunc.
func (p *stageProgress) Update(stage string, done, total int) {
	if !p.enabled || total <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil || p.stage != stage {
		if p.bar != nil {
			p.bar.Finish()
		}
		p.stage = stage
		p.start = time.Now()
		p.bar = newBar(total, fmt.Sprintf("[cyan]%s[reset]", stageLabel(stage)))
	}
	p.bar.Set(done)

	if done > 0 && done < total {
		rate := float64(done) / time.Since(p.start).Seconds()
		if rate > 0 {
			eta := time.Duration(float64(total-done)/rate) * time.Second
			p.bar.Describe(fmt.Sprintf("[cyan]%s[reset] ETA: %s", stageLabel(stage), formatDuration(eta)))
		}
	}
}

// Labels adapts Update to labeler.ProgressFunc.
func (p *stageProgress) Labels(done, total int) {
	p.Update("label", done, total)
}

func (p *stageProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}

// spinner shows an indeterminate progress indicator on a terminal.
func spinner(desc string) func() {
	if !isTerminal(os.Stderr) {
		return func() {}
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				bar.Add(1)
			}
		}
	}()
	return func() {
		close(done)
		bar.Finish()
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
