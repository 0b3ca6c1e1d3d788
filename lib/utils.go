package lib

import (
	"fmt"
	"os"
	"time"
)

func LocalFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || os.IsExist(err)
}

// FormatDuration renders a duration with second precision for table output.
func FormatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}

// FormatBytes renders a byte count in a human friendly unit.
func FormatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGT"[exp])
}
