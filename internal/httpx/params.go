package httpx

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD value as midnight in loc. Empty input returns def.
func ParseDate(v string, def time.Time, loc *time.Location) (time.Time, error) {
	if v == "" {
		return def, nil
	}
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(DateLayout, v, loc)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "date format must be 'YYYY-MM-DD'")
	}
	return d, nil
}

// QueryDateRange reads date_from and date_to as calendar days in loc.
// date_to is inclusive: the end of that day is returned.
func QueryDateRange(c *fiber.Ctx, loc *time.Location) (from, to time.Time, err error) {
	if from, err = ParseDate(c.Query("date_from"), time.Time{}, loc); err != nil {
		return
	}
	if to, err = ParseDate(c.Query("date_to"), time.Time{}, loc); err != nil {
		return
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return
}

// IntParam reads a positive integer route parameter.
func IntParam(c *fiber.Ctx, name string) (int, error) {
	v, err := strconv.Atoi(c.Params(name))
	if err != nil || v <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, name+" is invalid")
	}
	return v, nil
}
