package bridge

import (
	"fmt"
	"strings"

	"github.com/nexussynth/nexussynth-core/internal/context"
)

// htsUnitsPerMs is the HTS label time unit: 100ns ticks, i.e. 10000 per
// millisecond.
const htsUnitsPerMs = 10000

// GenerateLabels renders one HTS-style label line per record: start and end
// timestamps in 100ns HTS units, followed by the record's quinphone/
// triphone model name.
func GenerateLabels(records []context.PhonemeRecord) []string {
	lines := make([]string, len(records))

	for i, r := range records {
		lines[i] = formatLabelLine(r, records, i)
	}

	return lines
}

func formatLabelLine(r context.PhonemeRecord, records []context.PhonemeRecord, index int) string {
	start := int64(r.StartMs * htsUnitsPerMs)
	end := int64(r.EndMs * htsUnitsPerMs)

	return fmt.Sprintf("%d %d %s", start, end, context.ModelName(records, index))
}

// WriteLabelFile joins the rendered lines with newlines, HTS's plain-text
// .lab convention.
func WriteLabelFile(lines []string) string {
	return strings.Join(lines, "\n") + "\n"
}
