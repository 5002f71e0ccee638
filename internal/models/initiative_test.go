package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestInitiativeIsCollecting(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, -1, 0)
	future := now.AddDate(0, 1, 0)

	tests := []struct {
		name       string
		initiative Initiative
		want       bool
	}{
		{
			name:       "active with open-ended window",
			initiative: Initiative{Status: InitiativeStatusActive},
			want:       true,
		},
		{
			name: "active inside window",
			initiative: Initiative{
				Status:          InitiativeStatusActive,
				CollectionStart: timePtr(past),
				CollectionEnd:   timePtr(future),
			},
			want: true,
		},
		{
			name: "active before window opens",
			initiative: Initiative{
				Status:          InitiativeStatusActive,
				CollectionStart: timePtr(future),
			},
			want: false,
		},
		{
			name: "active after window closed",
			initiative: Initiative{
				Status:        InitiativeStatusActive,
				CollectionEnd: timePtr(past),
			},
			want: false,
		},
		{
			name: "only start bound, already open",
			initiative: Initiative{
				Status:          InitiativeStatusActive,
				CollectionStart: timePtr(past),
			},
			want: true,
		},
		{
			name:       "draft never collects",
			initiative: Initiative{Status: InitiativeStatusDraft},
			want:       false,
		},
		{
			name:       "closed never collects",
			initiative: Initiative{Status: InitiativeStatusClosed},
			want:       false,
		},
		{
			name: "closed inside window still does not collect",
			initiative: Initiative{
				Status:          InitiativeStatusClosed,
				CollectionStart: timePtr(past),
				CollectionEnd:   timePtr(future),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.initiative.IsCollecting(now))
		})
	}
}

func TestInitiativeProgressPercentage(t *testing.T) {
	initiative := Initiative{TargetSignatures: 200}

	assert.Equal(t, 0, initiative.ProgressPercentage(0))
	assert.Equal(t, 25, initiative.ProgressPercentage(50))
	assert.Equal(t, 100, initiative.ProgressPercentage(200))
	assert.Equal(t, 100, initiative.ProgressPercentage(500))

	noTarget := Initiative{TargetSignatures: 0}
	assert.Equal(t, 0, noTarget.ProgressPercentage(50))
}

func TestInitiativeIsGoalReached(t *testing.T) {
	initiative := Initiative{TargetSignatures: 100}

	assert.False(t, initiative.IsGoalReached(99))
	assert.True(t, initiative.IsGoalReached(100))
	assert.True(t, initiative.IsGoalReached(150))

	noTarget := Initiative{TargetSignatures: 0}
	assert.False(t, noTarget.IsGoalReached(1000))
}
