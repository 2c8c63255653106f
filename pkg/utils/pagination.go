package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// CursorParams represents cursor pagination parameters
type CursorParams struct {
	Limit  int
	Cursor string
}

// GetCursorParams extracts ?limit= and ?cursor= from the request, clamping limit to [1, max].
func GetCursorParams(c echo.Context, defaultLimit, maxLimit int) CursorParams {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	return CursorParams{
		Limit:  limit,
		Cursor: c.QueryParam("cursor"),
	}
}
