package actions

import (
	"strings"

	"github.com/rahul/workdesk/internal/store"
)

// checklistMarkers are the line prefixes recognised as checklist items. Lines
// with any other shape are dropped, including "10." and beyond.
var checklistMarkers = []string{"1.", "2.", "3.", "4.", "5.", "6.", "7.", "8.", "9.", "-", "•"}

// ParseChecklist extracts items from model output, one per recognised line.
func ParseChecklist(text string) []store.ChecklistItem {
	items := []store.ChecklistItem{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		marker, ok := matchMarker(line)
		if !ok {
			continue
		}
		item := strings.TrimSpace(strings.TrimPrefix(line, marker))
		items = append(items, store.ChecklistItem{Item: item})
	}
	return items
}

func matchMarker(line string) (string, bool) {
	for _, m := range checklistMarkers {
		if strings.HasPrefix(line, m) {
			return m, true
		}
	}
	return "", false
}
