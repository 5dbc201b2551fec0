package transcript

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

// WriteSRT writes one column of set as an SRT subtitle stream.
func WriteSRT(w io.Writer, set Set, lang Lang) error {
	if len(set.Sentences) == 0 {
		return fmt.Errorf("transcript is empty")
	}

	writer := bufio.NewWriter(w)
	for i, s := range set.Sentences {
		fmt.Fprintf(writer, "%d\n", i+1)
		fmt.Fprintf(writer, "%s --> %s\n", formatDuration(s.Start), formatDuration(s.End))

		text := strings.TrimSpace(s.Text.In(lang))
		if text == "" {
			text = "-"
		}
		fmt.Fprintf(writer, "%s\n\n", text)
	}
	return writer.Flush()
}

// formatDuration formats d in SRT time format.
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, milliseconds)
}
