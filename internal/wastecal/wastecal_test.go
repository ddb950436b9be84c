package wastecal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	calendar, err := New([]Rule{
		{Label: "燃えるごみ", Weekdays: []string{"月", "木曜日"}},
		{Label: "資源ごみ", Weekdays: []string{"wed"}, Weeks: []int{2, 4}},
		{Label: "びん・缶", Weekdays: []string{"Thursday"}, Weeks: []int{1}},
	})
	require.NoError(t, err)

	testCases := []struct {
		date     time.Time
		expected []string
	}{
		// 2024-06-03 is the first monday of june
		{date: time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC), expected: []string{"燃えるごみ"}},
		{date: time.Date(2024, time.June, 5, 0, 0, 0, 0, time.UTC), expected: []string{}},
		{date: time.Date(2024, time.June, 6, 0, 0, 0, 0, time.UTC), expected: []string{"燃えるごみ", "びん・缶"}},
		{date: time.Date(2024, time.June, 12, 0, 0, 0, 0, time.UTC), expected: []string{"資源ごみ"}},
		{date: time.Date(2024, time.June, 13, 0, 0, 0, 0, time.UTC), expected: []string{"燃えるごみ"}},
		{date: time.Date(2024, time.June, 26, 0, 0, 0, 0, time.UTC), expected: []string{"資源ごみ"}},
		{date: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), expected: []string{}},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, calendar.Lookup(test.date), test.date.Format(time.DateOnly))
	}
}

func TestNewInvalid(t *testing.T) {
	_, err := New([]Rule{{Label: "", Weekdays: []string{"mon"}}})
	require.Error(t, err)
	_, err = New([]Rule{{Label: "x"}})
	require.Error(t, err)
	_, err = New([]Rule{{Label: "x", Weekdays: []string{"someday"}}})
	require.Error(t, err)
	_, err = New([]Rule{{Label: "x", Weekdays: []string{"mon"}, Weeks: []int{6}}})
	require.Error(t, err)

	calendar, err := New(nil)
	require.NoError(t, err)
	require.Empty(t, calendar.Lookup(time.Now()))
}
