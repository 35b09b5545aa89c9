package pagination

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

var ErrInvalidLimit = errors.New("limit must be a non-negative integer")

// Clamp maps a requested page size onto [1, MaxLimit]; zero or negative
// selects DefaultLimit.
func Clamp(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitFromContext reads the "limit" query parameter. A missing value
// yields DefaultLimit.
func LimitFromContext(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, ErrInvalidLimit
	}
	return Clamp(n), nil
}
