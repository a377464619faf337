package download

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxPartialPercent caps progress until the pull reports success or exits 0,
// so a poller never sees 100 for a download that may still fail.
const MaxPartialPercent = 95

// ProgressEvent is what a single output line tells us about a pull.
type ProgressEvent struct {
	Percent   int
	Completed bool
	Message   string
}

var (
	byteRatioPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*([KMGT]i?B|B)\s*/\s*(\d+(?:\.\d+)?)\s*([KMGT]i?B|B)`)
	percentPattern   = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s*%`)
	ansiPattern      = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
)

type phaseKeyword struct {
	keyword   string
	percent   int
	completed bool
	message   string
}

// Checked in order; the first substring hit wins.
var phaseKeywords = []phaseKeyword{
	{keyword: "manifest", percent: 10, message: "Pulling manifest..."},
	{keyword: "config", percent: 15, message: "Downloading config..."},
	{keyword: "verifying", percent: 90, message: "Verifying download..."},
	{keyword: "success", percent: 100, completed: true, message: "Download completed"},
	{keyword: "complete", percent: 100, completed: true, message: "Download completed"},
}

var unitMultipliers = map[string]float64{
	"b":   1,
	"kb":  1e3,
	"mb":  1e6,
	"gb":  1e9,
	"tb":  1e12,
	"kib": 1 << 10,
	"mib": 1 << 20,
	"gib": 1 << 30,
	"tib": 1 << 40,
}

// ParseProgressLine maps one line of pull output to a progress event.
// It returns false for lines that carry no progress information.
func ParseProgressLine(line string) (ProgressEvent, bool) {
	line = CleanLine(line)
	if line == "" {
		return ProgressEvent{}, false
	}

	if m := byteRatioPattern.FindStringSubmatch(line); m != nil {
		current, okCur := toBytes(m[1], m[2])
		total, okTot := toBytes(m[3], m[4])
		if okCur && okTot && total > 0 {
			percent := capPartial(int(current / total * 100))
			return ProgressEvent{
				Percent: percent,
				Message: fmt.Sprintf("Downloading: %s%s/%s%s (%d%%)", m[1], m[2], m[3], m[4], percent),
			}, true
		}
	}

	if m := percentPattern.FindStringSubmatch(line); m != nil {
		value, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			percent := capPartial(int(value))
			return ProgressEvent{
				Percent: percent,
				Message: fmt.Sprintf("Downloading: %d%%", percent),
			}, true
		}
	}

	lower := strings.ToLower(line)
	for _, phase := range phaseKeywords {
		if strings.Contains(lower, phase.keyword) {
			return ProgressEvent{
				Percent:   phase.percent,
				Completed: phase.completed,
				Message:   phase.message,
			}, true
		}
	}

	return ProgressEvent{}, false
}

// CleanLine strips terminal control sequences and surrounding whitespace.
func CleanLine(line string) string {
	line = ansiPattern.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

func toBytes(value, unit string) (float64, bool) {
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	mult, ok := unitMultipliers[strings.ToLower(unit)]
	if !ok {
		return 0, false
	}
	return n * mult, true
}

func capPartial(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > MaxPartialPercent {
		return MaxPartialPercent
	}
	return percent
}
