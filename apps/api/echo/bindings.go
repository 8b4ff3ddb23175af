package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/maraakiz/portal/core"
)

var (
	skipParam  = "skip"
	limitParam = "limit"

	maxLimit = 100
)

// Pagination is forwarded to the upstream list resources as-is, once checked.
type Pagination struct {
	Skip  int
	Limit int
}

func (pg *Pagination) Bind(ctx echo.Context) error {
	var flds []core.FieldError
	for param, dst := range map[string]*int{skipParam: &pg.Skip, limitParam: &pg.Limit} {
		val := ctx.QueryParam(param)
		if val == "" {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			flds = append(flds, core.FieldError{Field: param, Error: "must be a non-negative integer"})
			continue
		}
		*dst = n
	}
	if pg.Limit > maxLimit {
		pg.Limit = maxLimit
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func (pg Pagination) QueryPairs() []core.QueryPair {
	var pairs []core.QueryPair
	if pg.Skip > 0 {
		pairs = append(pairs, core.QueryPair{Key: skipParam, Value: strconv.Itoa(pg.Skip)})
	}
	if pg.Limit > 0 {
		pairs = append(pairs, core.QueryPair{Key: limitParam, Value: strconv.Itoa(pg.Limit)})
	}
	return pairs
}
