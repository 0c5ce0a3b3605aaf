package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vericlock/vericlock/core"
)

var (
	orderingParam = "ordering"

	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindTime parses the query param as RFC3339 or, failing that, as a YYYY-MM-DD day in loc.
// An absent param leaves dst untouched.
func bindTime(ctx echo.Context, param string, loc *time.Location, dst *time.Time) error {
	val := strings.TrimSpace(ctx.QueryParam(param))
	if val == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		*dst = t
		return nil
	}
	t, err := time.ParseInLocation(dateLayout, val, loc)
	if err != nil {
		return invalidParam(param, "must be a date (YYYY-MM-DD) or a RFC3339 timestamp")
	}
	*dst = t
	return nil
}

// bindMonth parses a YYYY-MM query param in loc.
func bindMonth(ctx echo.Context, param string, loc *time.Location, dst *time.Time) error {
	val := strings.TrimSpace(ctx.QueryParam(param))
	if val == "" {
		return nil
	}
	t, err := time.ParseInLocation(monthLayout, val, loc)
	if err != nil {
		return invalidParam(param, "must be a month (YYYY-MM)")
	}
	*dst = t
	return nil
}

func invalidParam(param, msg string) error {
	return core.NewValidationError(nil, core.FieldError{Field: param, Error: msg})
}
