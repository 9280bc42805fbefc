// Package tui provides the text user interface for SignalTap.
package tui

import (
	"strconv"
	"strings"

	"signaltap/plcman"
)

// AppTitle is shown in the header bar.
const AppTitle = "SignalTap PLC Tag Scanner"

// Page labels
const (
	TabTags    = "Tags"
	TabLive    = "Live"
	TabOutputs = "Outputs"
	TabLog     = "Log"
)

// Fixed UI text
const (
	ScanButtonLabel     = "Scan PLC Tags"
	ScanningButtonLabel = "Scanning..."
	HideUnreadableLabel = "Hide Unreadable Tags"
	NoTagsText          = "No tags found. Try scanning a PLC."
	NoValuesText        = "No tag values to display yet."
)

// acceptDigits is a validation function for numeric input fields.
func acceptDigits(text string, lastChar rune) bool {
	if text == "" {
		return true
	}
	for _, c := range text {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ParseSlot converts the slot field to a number. Empty or invalid input is slot 0.
func ParseSlot(text string) int {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// statusIndicator renders the session status as a colored marker and label.
func statusIndicator(th Theme, s plcman.Status) string {
	on, busy, off := "●", "◐", "○"
	if th.ASCII {
		on, busy, off = "*", "~", "o"
	}
	switch s {
	case plcman.StatusPolling:
		return th.TagSuccess + on + " " + s.String() + th.TagReset
	case plcman.StatusScanning:
		return th.TagHotkey + busy + " " + s.String() + th.TagReset
	case plcman.StatusScanFailed:
		return th.TagError + on + " " + s.String() + th.TagReset
	default:
		return th.TagTextDim + off + " " + s.String() + th.TagReset
	}
}

// Help text
const HelpText = `
 Keyboard Shortcuts
 ──────────────────────────────────────

 Navigation
   Shift+Tab    Next page
   Tab          Move between fields
   Enter        Activate button / field
   Space        Toggle checkbox
   Escape       Close dialog / Back
   ?            Show this help

 Tags Page
   s            Scan PLC tags
   /            Focus filter
   c            Clear filter
   u            Toggle Hide Unreadable Tags
   i            Focus IP field

 Outputs Page
   c            Connect all outputs
   C            Disconnect all outputs

 Log Page
   c            Clear
   g / G        Top / bottom

 Application
   F6           Cycle color mode
   Q            Quit
`
