package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fansite/internal/model"
)

var jst = time.FixedZone("JST", 9*60*60)

func TestNormalize_OvernightRange(t *testing.T) {
	n := NewNormalizer(jst)

	iv, err := n.Normalize(model.ScheduleEvent{ID: "a", Date: "2024-01-10", Time: "23:00-01:00"})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 10, 23, 0, 0, 0, jst), iv.Start)
	assert.Equal(t, time.Date(2024, 1, 11, 1, 0, 0, 0, jst), iv.End)
	y, m, d := iv.End.In(jst).Date()
	assert.Equal(t, []int{2024, 1, 11}, []int{y, int(m), d})
	assert.True(t, iv.End.After(iv.Start))
}

func TestNormalize_AllDayIgnoresTime(t *testing.T) {
	n := NewNormalizer(jst)

	for _, tm := range []string{"", "19:00", "10:00-12:00", "garbage"} {
		t.Run("time="+tm, func(t *testing.T) {
			iv, err := n.Normalize(model.ScheduleEvent{ID: "b", Date: "2024-03-01", Time: tm, IsAllDay: true})
			require.NoError(t, err)
			assert.True(t, iv.AllDay)
			assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, jst), iv.Start)
			assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, jst), iv.End)
		})
	}
}

func TestNormalize_AllDayLongTerm(t *testing.T) {
	n := NewNormalizer(jst)

	iv, err := n.Normalize(model.ScheduleEvent{
		ID: "c", Date: "2024-06-01", EndDate: "2024-06-10", IsAllDay: true, IsLongTerm: true,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, jst), iv.Start)
	assert.Equal(t, time.Date(2024, 6, 11, 0, 0, 0, 0, jst), iv.End)
}

func TestNormalize(t *testing.T) {
	n := NewNormalizer(jst)

	tests := []struct {
		name      string
		ev        model.ScheduleEvent
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "single time is zero length",
			ev:        model.ScheduleEvent{Date: "2024-05-05", Time: "18:30"},
			wantStart: time.Date(2024, 5, 5, 18, 30, 0, 0, jst),
			wantEnd:   time.Date(2024, 5, 5, 18, 30, 0, 0, jst),
		},
		{
			name:      "no time starts at midnight",
			ev:        model.ScheduleEvent{Date: "2024-05-05"},
			wantStart: time.Date(2024, 5, 5, 0, 0, 0, 0, jst),
			wantEnd:   time.Date(2024, 5, 5, 0, 0, 0, 0, jst),
		},
		{
			name:      "same day range",
			ev:        model.ScheduleEvent{Date: "2024-05-05", Time: "13:00-15:30"},
			wantStart: time.Date(2024, 5, 5, 13, 0, 0, 0, jst),
			wantEnd:   time.Date(2024, 5, 5, 15, 30, 0, 0, jst),
		},
		{
			name:      "unpadded hours and wave dash",
			ev:        model.ScheduleEvent{Date: "2024/5/5", Time: "9:00〜10:00"},
			wantStart: time.Date(2024, 5, 5, 9, 0, 0, 0, jst),
			wantEnd:   time.Date(2024, 5, 5, 10, 0, 0, 0, jst),
		},
		{
			name:      "first of several slots",
			ev:        model.ScheduleEvent{Date: "2024-05-05", Time: "19:00 / 21:00"},
			wantStart: time.Date(2024, 5, 5, 19, 0, 0, 0, jst),
			wantEnd:   time.Date(2024, 5, 5, 19, 0, 0, 0, jst),
		},
		{
			name:      "range in later slot is ignored",
			ev:        model.ScheduleEvent{Date: "2024-05-05", Time: "12:00 / 17:00-19:00"},
			wantStart: time.Date(2024, 5, 5, 12, 0, 0, 0, jst),
			wantEnd:   time.Date(2024, 5, 5, 12, 0, 0, 0, jst),
		},
		{
			name:      "first range of several slots",
			ev:        model.ScheduleEvent{Date: "2024-05-05", Time: "13:00-15:00 / 18:00-20:00"},
			wantStart: time.Date(2024, 5, 5, 13, 0, 0, 0, jst),
			wantEnd:   time.Date(2024, 5, 5, 15, 0, 0, 0, jst),
		},
		{
			name:      "label around clock",
			ev:        model.ScheduleEvent{Date: "2024-05-05", Time: "開演18:00"},
			wantStart: time.Date(2024, 5, 5, 18, 0, 0, 0, jst),
			wantEnd:   time.Date(2024, 5, 5, 18, 0, 0, 0, jst),
		},
		{
			name:      "long-term range ends on end date",
			ev:        model.ScheduleEvent{Date: "2024-06-01", EndDate: "2024-06-10", IsLongTerm: true, Time: "10:00-18:00"},
			wantStart: time.Date(2024, 6, 1, 10, 0, 0, 0, jst),
			wantEnd:   time.Date(2024, 6, 10, 18, 0, 0, 0, jst),
		},
		{
			name: "datetime wins over date and time",
			ev: model.ScheduleEvent{
				Date: "2024-05-05", Time: "10:00-11:00",
				Datetime: "2024-05-06T03:00:00Z", EndDatetime: "2024-05-06T05:00:00Z",
			},
			wantStart: time.Date(2024, 5, 6, 12, 0, 0, 0, jst),
			wantEnd:   time.Date(2024, 5, 6, 14, 0, 0, 0, jst),
		},
		{
			name:      "datetime with range end",
			ev:        model.ScheduleEvent{Datetime: "2024-05-06T22:00:00+09:00", Time: "22:00-00:30"},
			wantStart: time.Date(2024, 5, 6, 22, 0, 0, 0, jst),
			wantEnd:   time.Date(2024, 5, 7, 0, 30, 0, 0, jst),
		},
		{
			name:      "zone-less datetime is read in site zone",
			ev:        model.ScheduleEvent{Datetime: "2024-05-06T19:00"},
			wantStart: time.Date(2024, 5, 6, 19, 0, 0, 0, jst),
			wantEnd:   time.Date(2024, 5, 6, 19, 0, 0, 0, jst),
		},
		{
			name:      "ORM style date",
			ev:        model.ScheduleEvent{Date: "2024-05-05T00:00:00.000Z", Time: "20:00"},
			wantStart: time.Date(2024, 5, 5, 20, 0, 0, 0, jst),
			wantEnd:   time.Date(2024, 5, 5, 20, 0, 0, 0, jst),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv, err := n.Normalize(tt.ev)
			require.NoError(t, err)
			assert.True(t, tt.wantStart.Equal(iv.Start), "start: want %s got %s", tt.wantStart, iv.Start)
			assert.True(t, tt.wantEnd.Equal(iv.End), "end: want %s got %s", tt.wantEnd, iv.End)
			assert.False(t, iv.End.Before(iv.Start))
		})
	}
}

func TestNormalize_Errors(t *testing.T) {
	n := NewNormalizer(jst)

	tests := []struct {
		name    string
		ev      model.ScheduleEvent
		wantErr error
		field   string
	}{
		{"missing date", model.ScheduleEvent{Time: "10:00"}, ErrMalformedDate, "date"},
		{"garbage date", model.ScheduleEvent{Date: "next friday"}, ErrMalformedDate, "date"},
		{"garbage time", model.ScheduleEvent{Date: "2024-01-01", Time: "evening"}, ErrMalformedDate, "time"},
		{"hour out of range", model.ScheduleEvent{Date: "2024-01-01", Time: "25:00"}, ErrMalformedDate, "time"},
		{"range end out of range", model.ScheduleEvent{Date: "2024-01-01", Time: "23:00-24:30"}, ErrMalformedDate, "time"},
		{"garbage datetime", model.ScheduleEvent{Datetime: "soon"}, ErrMalformedDate, "datetime"},
		{"garbage end datetime", model.ScheduleEvent{Date: "2024-01-01", EndDatetime: "later"}, ErrMalformedDate, "endDatetime"},
		{"long-term without end", model.ScheduleEvent{Date: "2024-01-01", IsLongTerm: true}, ErrInvalidRange, ""},
		{"long-term end before start", model.ScheduleEvent{Date: "2024-01-05", EndDate: "2024-01-01", IsLongTerm: true}, ErrInvalidRange, ""},
		{
			"end datetime more than a day early",
			model.ScheduleEvent{Datetime: "2024-01-05T10:00:00Z", EndDatetime: "2024-01-01T10:00:00Z"},
			ErrInvalidRange, "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.ev)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var mde *MalformedDateError
			if tt.field != "" {
				require.True(t, errors.As(err, &mde))
				assert.Equal(t, tt.field, mde.Field)
			}
		})
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	n := NewNormalizer(jst)
	ev := model.ScheduleEvent{Date: "2024-01-10", Time: "23:00-01:00"}

	a, err := n.Normalize(ev)
	require.NoError(t, err)
	b, err := n.Normalize(ev)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCheckRange(t *testing.T) {
	assert.NoError(t, CheckRange(model.ScheduleEvent{Date: "2024-01-01"}))
	assert.NoError(t, CheckRange(model.ScheduleEvent{Date: "2024-01-01", EndDate: "2024-01-01", IsLongTerm: true}))

	err := CheckRange(model.ScheduleEvent{ID: "x", Date: "2024-01-02", EndDate: "2024-01-01", IsLongTerm: true})
	var ire *InvalidRangeError
	require.True(t, errors.As(err, &ire))
	assert.Equal(t, "x", ire.ID)
}
