package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fansite/internal/model"
)

func TestExpandDays(t *testing.T) {
	tests := []struct {
		name string
		iv   model.Interval
		want []string
	}{
		{
			name: "zero length",
			iv: model.Interval{
				Start: time.Date(2024, 1, 10, 19, 0, 0, 0, jst),
				End:   time.Date(2024, 1, 10, 19, 0, 0, 0, jst),
			},
			want: []string{"2024-01-10"},
		},
		{
			name: "overnight",
			iv: model.Interval{
				Start: time.Date(2024, 1, 10, 23, 0, 0, 0, jst),
				End:   time.Date(2024, 1, 11, 1, 0, 0, 0, jst),
			},
			want: []string{"2024-01-10", "2024-01-11"},
		},
		{
			name: "ends at midnight",
			iv: model.Interval{
				Start: time.Date(2024, 1, 10, 22, 0, 0, 0, jst),
				End:   time.Date(2024, 1, 11, 0, 0, 0, 0, jst),
			},
			want: []string{"2024-01-10"},
		},
		{
			name: "all-day span",
			iv: model.Interval{
				Start:  time.Date(2024, 2, 28, 0, 0, 0, 0, jst),
				End:    time.Date(2024, 3, 2, 0, 0, 0, 0, jst),
				AllDay: true,
			},
			want: []string{"2024-02-28", "2024-02-29", "2024-03-01"},
		},
		{
			name: "utc instants land on site days",
			iv: model.Interval{
				Start: time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 1, 10, 16, 0, 0, 0, time.UTC),
			},
			want: []string{"2024-01-10", "2024-01-11"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandDays(tt.iv, jst))
		})
	}
}

func TestExpandDays_Capped(t *testing.T) {
	iv := model.Interval{
		Start:  time.Date(2020, 1, 1, 0, 0, 0, 0, jst),
		End:    time.Date(2030, 1, 1, 0, 0, 0, 0, jst),
		AllDay: true,
	}
	assert.Len(t, ExpandDays(iv, jst), maxExpandDays)
}
