package analytics_test

import (
	"testing"

	"github.com/caionorder/redirectd/internal/analytics"
	"github.com/stretchr/testify/assert"
)

func TestParseECPM(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want float64
	}{{
		name: "empty",
		in:   "",
		want: 0,
	}, {
		name: "unparseable",
		in:   "not a number",
		want: 0,
	}, {
		name: "valid",
		in:   "12.5",
		want: 12.5,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, analytics.ParseECPM(tc.in))
		})
	}
}
