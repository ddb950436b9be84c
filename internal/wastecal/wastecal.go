// Package wastecal answers which waste categories are collected on a given day.
package wastecal

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Rule is a collection schedule for one category. Weeks restricts the rule to
// the nth occurrence (1-5) of the weekday within the month, an empty Weeks means
// every week.
type Rule struct {
	Label    string   `json:"label"`
	Weekdays []string `json:"weekdays"`
	Weeks    []int    `json:"weeks"`
}

type compiledRule struct {
	label    string
	weekdays []time.Weekday
	weeks    []int
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday, "日": time.Sunday,
	"monday": time.Monday, "mon": time.Monday, "月": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "火": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "水": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "木": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "金": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "土": time.Saturday,
}

func ParseWeekday(name string) (time.Weekday, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimSuffix(name, "曜日")
	weekday, ok := weekdayNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", name)
	}
	return weekday, nil
}

type Calendar struct {
	rules []compiledRule
}

func New(rules []Rule) (Calendar, error) {
	calendar := Calendar{}
	for i, r := range rules {
		if strings.TrimSpace(r.Label) == "" {
			return Calendar{}, fmt.Errorf("rule %d: empty label", i)
		}
		if len(r.Weekdays) == 0 {
			return Calendar{}, fmt.Errorf("rule %q: no weekdays", r.Label)
		}

		compiled := compiledRule{label: r.Label}
		for _, name := range r.Weekdays {
			weekday, err := ParseWeekday(name)
			if err != nil {
				return Calendar{}, fmt.Errorf("rule %q: %w", r.Label, err)
			}
			compiled.weekdays = append(compiled.weekdays, weekday)
		}
		for _, week := range r.Weeks {
			if week < 1 || week > 5 {
				return Calendar{}, fmt.Errorf("rule %q: week %d out of range", r.Label, week)
			}
			compiled.weeks = append(compiled.weeks, week)
		}
		calendar.rules = append(calendar.rules, compiled)
	}
	return calendar, nil
}

// occurrence returns which occurrence of its weekday date is within its month.
func occurrence(date time.Time) int {
	return (date.Day()-1)/7 + 1
}

// Lookup returns the labels of every category collected on date, in rule order.
func (c Calendar) Lookup(date time.Time) []string {
	labels := []string{}
	for _, r := range c.rules {
		if !slices.Contains(r.weekdays, date.Weekday()) {
			continue
		}
		if len(r.weeks) > 0 && !slices.Contains(r.weeks, occurrence(date)) {
			continue
		}
		labels = append(labels, r.label)
	}
	return labels
}
