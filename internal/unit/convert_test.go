package unit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestConvert(t *testing.T) {
	c := NewConverter(nil)

	cases := []struct {
		qty      float64
		from, to string
		want     float64
	}{
		{1500, "g", "kg", 1.5},
		{2, "KG", "g", 2000},
		{250, "ml", "L", 0.25},
		{0.75, "l", "ml", 750},
		{33, "cl", "L", 0.33},
		{1.5, "Litre", "cl", 150},
		{50, "ml", "cl", 5},
		{4, "cl", "ml", 40},
		{12, "units", "UNITS", 12},
		{3, " kg ", "kg", 3},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, c.Convert(tc.qty, tc.from, tc.to), 1e-9, "%v %s -> %s", tc.qty, tc.from, tc.to)
	}
}

func TestConvertRoundTrip(t *testing.T) {
	c := NewConverter(nil)
	pairs := [][2]string{{"g", "kg"}, {"ml", "L"}, {"cl", "L"}, {"ml", "cl"}}
	values := []float64{0, 0.001, 1, 3.3, 125.5, 99999}

	for _, p := range pairs {
		for _, x := range values {
			there := c.Convert(x, p[0], p[1])
			back := c.Convert(there, p[1], p[0])
			assert.InDelta(t, x, back, 1e-9*(1+x), "%v via %s/%s", x, p[0], p[1])
		}
	}
}

func TestConvertFallbackLogs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := NewConverter(zap.New(core))

	assert.Equal(t, 7.0, c.Convert(7, "kg", "L"))
	assert.Equal(t, 2.0, c.Convert(2, "pieces", "g"))

	entries := logs.FilterMessage("unit conversion fallback").All()
	assert.Len(t, entries, 2)
	assert.Equal(t, "kg", entries[0].ContextMap()["from"])
}

func TestFactor(t *testing.T) {
	_, ok := Factor("kg", "ml")
	assert.False(t, ok)

	f, ok := Factor("L", "l")
	assert.True(t, ok)
	assert.Equal(t, 1.0, f)
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("KG"))
	assert.True(t, Known("pieces"))
	assert.True(t, Known("litre"))
	assert.False(t, Known("cup"))
}
