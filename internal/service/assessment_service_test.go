package service

import (
	"testing"
)

func TestMeanRounded(t *testing.T) {
	cases := []struct {
		sum   int64
		count int
		want  float64
	}{
		{220, 11, 20},      // all questions scored 20
		{330, 11, 30},      // maximum score
		{0, 11, 0},         // minimum score
		{100, 11, 9.09},    // rounds down
		{200, 11, 18.18},   // rounds 18.1818...
		{250, 11, 22.73},   // rounds 22.7272... up
		{10, 3, 3.33},      // repeating decimal
		{20, 3, 6.67},      // rounds up at the third decimal
	}

	for _, tc := range cases {
		if got := meanRounded(tc.sum, tc.count); got != tc.want {
			t.Errorf("meanRounded(%d, %d) = %v, want %v", tc.sum, tc.count, got, tc.want)
		}
	}
}
