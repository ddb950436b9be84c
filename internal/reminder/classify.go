// Package reminder decides which loans are worth a reminder and renders the
// message.
package reminder

import (
	"time"

	"libreminder/internal/components/chrono"
	"libreminder/internal/loans"
)

type BucketKind string

const (
	KindDueInThreeDays BucketKind = "due-in-3-days"
	KindDueSoon        BucketKind = "due-soon"
)

// dueAheadDays is the advance notice given by the due-in-3-days bucket.
const dueAheadDays = 3

// Bucket is a group of titles sharing the same urgency. Titles keep the order
// of the listing page.
type Bucket struct {
	Kind   BucketKind
	Label  string
	Titles []string
}

type Policy struct {
	// DueSoonIncludesToday puts loans due today in the due-soon bucket together
	// with the ones due tomorrow.
	DueSoonIncludesToday bool

	DueInThreeDaysLabel string
	DueSoonLabel        string
}

func DefaultPolicy() Policy {
	return Policy{
		DueSoonIncludesToday: true,
		DueInThreeDaysLabel:  "due in 3 days",
		DueSoonLabel:         "due today or tomorrow",
	}
}

type Classifier struct {
	policy   Policy
	location *time.Location
}

// NewClassifier creates a classifier counting calendar days in loc, which should
// be the portal's timezone.
func NewClassifier(policy Policy, loc *time.Location) Classifier {
	defaults := DefaultPolicy()
	if policy.DueInThreeDaysLabel == "" {
		policy.DueInThreeDaysLabel = defaults.DueInThreeDaysLabel
	}
	if policy.DueSoonLabel == "" {
		if policy.DueSoonIncludesToday {
			policy.DueSoonLabel = defaults.DueSoonLabel
		} else {
			policy.DueSoonLabel = "due tomorrow"
		}
	}
	if loc == nil {
		loc = time.Local
	}
	return Classifier{policy: policy, location: loc}
}

// Kind returns the bucket a loan due after the given number of days belongs to.
func (c Classifier) Kind(days int) (BucketKind, bool) {
	switch {
	case days == dueAheadDays:
		return KindDueInThreeDays, true
	case days == 1:
		return KindDueSoon, true
	case days == 0 && c.policy.DueSoonIncludesToday:
		return KindDueSoon, true
	}
	return "", false
}

// Classify buckets records relative to the calendar day of reference. Overdue
// loans and loans due later than the advance notice (other than exactly on it)
// are left out. Both buckets are always returned, due-in-3-days first.
func (c Classifier) Classify(reference time.Time, records []loans.Record) []Bucket {
	ahead := Bucket{Kind: KindDueInThreeDays, Label: c.policy.DueInThreeDaysLabel, Titles: []string{}}
	soon := Bucket{Kind: KindDueSoon, Label: c.policy.DueSoonLabel, Titles: []string{}}

	today := chrono.Midnight(reference, c.location)
	for _, r := range records {
		days := chrono.DaysBetween(today, chrono.Midnight(r.Due, c.location))
		kind, ok := c.Kind(days)
		if !ok {
			continue
		}
		switch kind {
		case KindDueInThreeDays:
			ahead.Titles = append(ahead.Titles, r.Title)
		case KindDueSoon:
			soon.Titles = append(soon.Titles, r.Title)
		}
	}

	return []Bucket{ahead, soon}
}
