// Package loans holds the loan record shared by extraction and classification.
package loans

import (
	"fmt"
	"time"
)

// Record is one borrowed item. Due is always midnight of the due day in the
// portal's timezone.
type Record struct {
	Title string
	Due   time.Time
}

func (r Record) String() string {
	return fmt.Sprintf("%s (due %s)", r.Title, r.Due.Format("2006-01-02"))
}
