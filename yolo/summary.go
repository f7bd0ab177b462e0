package yolo

import (
	"fmt"
	"strings"
	"time"
)

// RunSummary 一次运行的汇总信息
type RunSummary struct {
	TotalTime time.Duration
	Device    string
	Model     string
	OutputDir string
	Processed int
	Failed    int
}

func (s RunSummary) String() string {
	var b strings.Builder
	b.WriteString("Processing Summary:\n")
	fmt.Fprintf(&b, "  - Total processing time: %.2f seconds\n", s.TotalTime.Seconds())
	fmt.Fprintf(&b, "  - Device used: %s\n", s.Device)
	fmt.Fprintf(&b, "  - Model: %s\n", s.Model)
	if s.Processed > 0 || s.Failed > 0 {
		fmt.Fprintf(&b, "  - Processed: %d, Failed: %d\n", s.Processed, s.Failed)
	}
	fmt.Fprintf(&b, "  - Output directory: %s", s.OutputDir)
	return b.String()
}
