package main

import (
	"testing"

	"github.com/simworld/server/internal/physics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParam(t *testing.T) {
	tests := []struct {
		arg  string
		want physics.Param
	}{
		{"max_step_size=0.002", physics.DoubleParam("max_step_size", 0.002)},
		{"real_time_update_rate=1", physics.DoubleParam("real_time_update_rate", 1)},
		{"iters=50i", physics.IntParam("iters", 50)},
		{"enabled=true", physics.BoolParam("enabled", true)},
		{"gravity=0, 0, -1.62", physics.VectorParam("gravity", physics.Vector3{0, 0, -1.62})},
		{"type=ode", physics.StringParam("type", "ode")},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseParam(tt.arg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseParamErrors(t *testing.T) {
	for _, arg := range []string{"novalue", "=1", "gravity=1,x,2"} {
		_, err := parseParam(arg)
		assert.Error(t, err, arg)
	}
}
