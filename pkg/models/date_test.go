package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Date
		wantErr bool
	}{
		{name: "plain date", input: "2024-01-15", want: NewDate(2024, time.January, 15)},
		{name: "timestamp keeps date", input: "2024-01-15T23:59:59+08:00", want: NewDate(2024, time.January, 15)},
		{name: "empty is zero", input: "", want: Date{}},
		{name: "garbage", input: "15/01/2024", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDate(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %s want %s", got, tc.want)
		})
	}
}

func TestDateOfDropsTimeOfDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	d := DateOf(time.Date(2024, time.March, 1, 22, 30, 0, 0, loc))
	assert.Equal(t, "2024-03-01", d.String())
	assert.Equal(t, time.Friday, d.Weekday())
}

func TestDaysSince(t *testing.T) {
	d := NewDate(2024, time.January, 1)
	assert.Equal(t, 0, d.DaysSince(d))
	assert.Equal(t, 1, d.AddDays(1).DaysSince(d))
	assert.Equal(t, 3, d.AddDays(3).DaysSince(d))
	assert.Equal(t, -2, d.AddDays(-2).DaysSince(d))
	// across a DST-free leap day
	assert.Equal(t, 2, NewDate(2024, time.March, 1).DaysSince(NewDate(2024, time.February, 28)))
}

func TestDateJSON(t *testing.T) {
	var payload struct {
		Day  Date `json:"day"`
		None Date `json:"none"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"day":"2024-06-09","none":null}`), &payload))
	assert.Equal(t, "2024-06-09", payload.Day.String())
	assert.True(t, payload.None.IsZero())

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2024-06-09","none":null}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"day":20240609}`), &payload))
}
