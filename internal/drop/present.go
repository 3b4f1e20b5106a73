package drop

import "fmt"

// FormatSize renders a byte count with one decimal, e.g. "12.3 KB".
func FormatSize(size int64) string {
	v := float64(size)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if v < 1024.0 {
			return fmt.Sprintf("%.1f %s", v, unit)
		}
		v /= 1024.0
	}
	return fmt.Sprintf("%.1f TB", v)
}

// PreviewUnavailable is returned by text previews that cannot be read.
const PreviewUnavailable = "Unable to preview file"
