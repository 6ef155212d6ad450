package compensation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"綜上所陳，被告應賠償原告共計新臺幣1,234,567元", 1234567, true},
		{"總計 250000 元", 250000, true},
		{"合計1234元整", 1234, true},
		{"請求賠償金額 80,000元", 80000, true},
		{"共計3,000.50元", 3000, true},
		{"沒有金額", 0, false},
	}
	for _, tc := range cases {
		got, ok := ExtractAmount(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestAverageAmount(t *testing.T) {
	avg := AverageAmount([]string{"共計100元", "無金額", "總計300元"})
	assert.Equal(t, 200.0, avg)
	assert.Equal(t, 0.0, AverageAmount(nil))
	assert.Equal(t, 0.0, AverageAmount([]string{"nothing"}))
}
