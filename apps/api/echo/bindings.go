package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/edlabhq/exameval/core"
)

var orderingParam = "ordering"

// Ordering binds the "ordering" query param, a comma-separated field list
// where a "-" prefix means descending.
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// successResponse is the envelope for every successful request.
type successResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Token   string      `json:"token,omitempty"`
}

func newSuccessResponse(data interface{}, token ...string) successResponse {
	res := successResponse{Success: true, Data: data}
	if len(token) > 0 {
		res.Token = token[0]
	}
	return res
}
