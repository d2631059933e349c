// Package unit converts recipe quantities into stock units.
package unit

import (
	"strings"

	"go.uber.org/zap"
)

const (
	Gram       = "g"
	Kilogram   = "kg"
	Milliliter = "ml"
	Centiliter = "cl"
	Liter      = "l"
	Units      = "units"
	Pieces     = "pieces"
)

var aliases = map[string]string{
	"gr":         Gram,
	"gram":       Gram,
	"grams":      Gram,
	"kilo":       Kilogram,
	"kilogram":   Kilogram,
	"kilograms":  Kilogram,
	"litre":      Liter,
	"liter":      Liter,
	"litres":     Liter,
	"liters":     Liter,
	"unit":       Units,
	"u":          Units,
	"piece":      Pieces,
	"pcs":        Pieces,
	"milliliter": Milliliter,
	"centiliter": Centiliter,
}

// factors[from][to] multiplies a quantity in from into to.
var factors = map[string]map[string]float64{
	Gram:       {Kilogram: 1.0 / 1000},
	Kilogram:   {Gram: 1000},
	Milliliter: {Liter: 1.0 / 1000, Centiliter: 1.0 / 10},
	Centiliter: {Liter: 1.0 / 100, Milliliter: 10},
	Liter:      {Milliliter: 1000, Centiliter: 100},
}

// Normalize lower-cases a unit and resolves aliases ("L" and "litre" both become "l").
func Normalize(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	if a, ok := aliases[u]; ok {
		return a
	}
	return u
}

// Known reports whether u takes part in at least one conversion or is a count unit.
func Known(u string) bool {
	n := Normalize(u)
	if _, ok := factors[n]; ok {
		return true
	}
	return n == Units || n == Pieces
}

// Factor returns the multiplier converting from into to.
// ok is false when the pair is not convertible.
func Factor(from, to string) (float64, bool) {
	f, t := Normalize(from), Normalize(to)
	if f == t {
		return 1, true
	}
	m, ok := factors[f][t]
	return m, ok
}

// Converter applies Factor and logs when it has to pass a quantity through unchanged.
type Converter struct {
	log *zap.Logger
}

func NewConverter(log *zap.Logger) *Converter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Converter{log: log.Named("unit")}
}

// Convert expresses quantity (in from) in to. Unknown pairs return quantity unchanged.
func (c *Converter) Convert(quantity float64, from, to string) float64 {
	m, ok := Factor(from, to)
	if !ok {
		c.log.Warn("unit conversion fallback",
			zap.String("from", from),
			zap.String("to", to),
			zap.Float64("quantity", quantity),
		)
		return quantity
	}
	return quantity * m
}
