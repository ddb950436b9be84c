package reminder

import (
	"fmt"
	"strings"
)

// Compose renders the non-empty buckets in order. It returns false if there is
// nothing to remind about.
func Compose(buckets []Bucket) (string, bool) {
	var sections []string
	for _, b := range buckets {
		if len(b.Titles) == 0 {
			continue
		}
		var section strings.Builder
		fmt.Fprintf(&section, "【%s】 (%d)", b.Label, len(b.Titles))
		for _, title := range b.Titles {
			section.WriteString("\n- ")
			section.WriteString(title)
		}
		sections = append(sections, section.String())
	}
	if len(sections) == 0 {
		return "", false
	}
	return strings.Join(sections, "\n\n"), true
}
