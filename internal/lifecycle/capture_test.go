package lifecycle

import (
	"testing"

	"github.com/luisjglz/evaluat/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestParseResultValue(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    float64
		wantErr bool
	}{
		{name: "decimal point", raw: "12.5", want: 12.5},
		{name: "decimal comma", raw: "12,5", want: 12.5},
		{name: "integer", raw: "42", want: 42},
		{name: "negative with comma", raw: "-0,75", want: -0.75},
		{name: "exponent", raw: "1.5e3", want: 1500},
		{name: "exponent with comma", raw: "1,5e3", want: 1500},
		{name: "surrounding whitespace", raw: "  3,14  ", want: 3.14},
		{name: "empty", raw: "", wantErr: true},
		{name: "blank", raw: "   ", wantErr: true},
		{name: "text", raw: "abc", wantErr: true},
		{name: "two commas", raw: "1,2,3", wantErr: true},
		{name: "comma and point", raw: "1,234.5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResultValue(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, types.IsType(err, types.ErrorTypeValidation))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCaptureAllowed(t *testing.T) {
	tests := []struct {
		name       string
		lab        *types.Laboratory
		today      int
		want       bool
		wantReason string
	}{
		{
			name:  "capturing inside window",
			lab:   &types.Laboratory{State: types.StateCapturing, CaptureCutoffDay: 25},
			today: 20,
			want:  true,
		},
		{
			name:       "window closed",
			lab:        &types.Laboratory{State: types.StateCapturing, CaptureCutoffDay: 25},
			today:      26,
			want:       false,
			wantReason: "capture window is closed",
		},
		{
			name:       "still configuring",
			lab:        &types.Laboratory{State: types.StateConfiguring, CaptureCutoffDay: 25},
			today:      20,
			want:       false,
			wantReason: "laboratory has not entered the capture phase",
		},
		{
			name:       "reviewing without override",
			lab:        &types.Laboratory{State: types.StateReviewing, CaptureCutoffDay: 25},
			today:      20,
			want:       false,
			wantReason: "reporting period is closed",
		},
		{
			name: "reviewing with override re-admits late entry",
			lab: &types.Laboratory{
				State:                 types.StateReviewing,
				CaptureCutoffDay:      25,
				CaptureOverrideActive: true,
			},
			today: 20,
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := captureAllowed(tt.lab, day(tt.today))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}
