package transcript

import (
	"fmt"
	"strings"

	"github.com/ashureev/convo-coach/internal/domain"
)

// FormatSegments renders segments as timestamped speaker lines separated by
// blank lines, the shape every prompt expects.
func FormatSegments(segments []domain.TranscriptSegment) string {
	var sb strings.Builder
	for i, seg := range segments {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s] ", timestampRange(seg.Start, seg.End))
		if seg.IsUser {
			sb.WriteString("User: ")
		} else {
			fmt.Fprintf(&sb, "Speaker %d: ", seg.SpeakerID)
		}
		sb.WriteString(strings.TrimSpace(seg.Text))
	}
	return sb.String()
}

// JoinText joins the raw segment texts with single spaces.
func JoinText(segments []domain.TranscriptSegment) string {
	parts := make([]string, len(segments))
	for i, seg := range segments {
		parts[i] = seg.Text
	}
	return strings.Join(parts, " ")
}

// LastEnd returns the end time of the final segment, or 0 when empty.
func LastEnd(segments []domain.TranscriptSegment) float64 {
	if len(segments) == 0 {
		return 0
	}
	return segments[len(segments)-1].End
}

func timestampRange(start, end float64) string {
	return formatDuration(start) + " - " + formatDuration(end)
}

func formatDuration(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
