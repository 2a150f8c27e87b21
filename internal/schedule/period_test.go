package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fansite/internal/model"
)

func TestClassify_Boundaries(t *testing.T) {
	c := NewClassifier(jst)
	ev := model.ScheduleEvent{ID: "exhibit", Date: "2024-06-01", EndDate: "2024-06-10", IsLongTerm: true}

	tests := []struct {
		now  time.Time
		want model.PeriodStatus
	}{
		{time.Date(2024, 5, 31, 23, 59, 0, 0, jst), model.PeriodUpcoming},
		{time.Date(2024, 6, 1, 0, 0, 0, 0, jst), model.PeriodOngoing},
		{time.Date(2024, 6, 5, 12, 0, 0, 0, jst), model.PeriodOngoing},
		{time.Date(2024, 6, 10, 23, 59, 0, 0, jst), model.PeriodOngoing},
		{time.Date(2024, 6, 11, 0, 1, 0, 0, jst), model.PeriodEnded},
		// 2024-06-10 16:00 UTC is 2024-06-11 01:00 in the site zone.
		{time.Date(2024, 6, 10, 16, 0, 0, 0, time.UTC), model.PeriodEnded},
	}

	for _, tt := range tests {
		t.Run(tt.now.Format(time.RFC3339), func(t *testing.T) {
			got, err := c.Classify(ev, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_SingleDay(t *testing.T) {
	c := NewClassifier(jst)
	ev := model.ScheduleEvent{Date: "2024-06-01", EndDate: "2024-06-01", IsLongTerm: true}

	got, err := c.Classify(ev, time.Date(2024, 6, 1, 23, 0, 0, 0, jst))
	require.NoError(t, err)
	assert.Equal(t, model.PeriodOngoing, got)
}

func TestClassify_Errors(t *testing.T) {
	c := NewClassifier(jst)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, jst)

	_, err := c.Classify(model.ScheduleEvent{Date: "2024-06-01"}, now)
	assert.ErrorIs(t, err, ErrNotLongTerm)

	_, err = c.Classify(model.ScheduleEvent{Date: "2024-06-01", IsLongTerm: true}, now)
	assert.True(t, errors.Is(err, ErrInvalidRange))

	_, err = c.Classify(model.ScheduleEvent{Date: "June", EndDate: "2024-06-02", IsLongTerm: true}, now)
	assert.True(t, errors.Is(err, ErrMalformedDate))
}
