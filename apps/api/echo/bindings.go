package echoapi

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
)

const (
	orderingParam = "ordering"
	limitParam    = "limit"
	pageParam     = "page"
	successMsg    = "Success"
)

var binder = new(echo.DefaultBinder)

type (
	// filter narrows a listing from query parameters.
	filter interface {
		Where() sq.Sqlizer
	}

	// checker is implemented by filters with mandatory parameters.
	checker interface {
		Validate() error
	}

	response struct {
		Err     bool        `json:"err"`
		Msg     string      `json:"msg"`
		Results interface{} `json:"results,omitempty"`
	}

	pageResponse struct {
		Count    int         `json:"count"`
		Next     *string     `json:"next"`
		Previous *string     `json:"previous"`
		Results  interface{} `json:"results"`
	}
)

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
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindFilter binds the query parameters into f, a pointer to a filter struct.
func bindFilter(ctx echo.Context, f interface{}) error {
	if err := binder.BindQueryParams(ctx, f); err != nil {
		return errors.Wrap(err, "binding query params")
	}
	if c, ok := f.(checker); ok {
		return c.Validate()
	}
	return nil
}

// bindBody decodes the JSON body into v, a pointer to a struct.
func bindBody(ctx echo.Context, v interface{}) error {
	return errors.Wrap(binder.BindBody(ctx, v), "binding body")
}

func pageOf(ctx echo.Context) query.Page {
	return query.ParsePage(ctx.QueryParam(limitParam), ctx.QueryParam(pageParam))
}

// listParams reads the ordering and the page of a listing.
func listParams(ctx echo.Context, where sq.Sqlizer) core.ListParams {
	var ord Ordering
	ord.Bind(ctx)
	return core.ListParams{Where: where, Ordering: ord.Orderings, Page: pageOf(ctx)}
}

func idParam(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// intParam reads an optional integer query parameter.
func intParam(ctx echo.Context, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(ctx.QueryParam(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.NewFieldError(name, "a valid integer is required")
	}
	return n, nil
}

func success(ctx echo.Context, code int, results interface{}) error {
	return ctx.JSON(code, response{Msg: successMsg, Results: results})
}

func message(ctx echo.Context, code int, msg string) error {
	return ctx.JSON(code, response{Msg: msg})
}

// paginated writes one page of a listing with the absolute links of its neighbour pages.
func paginated[R any](ctx echo.Context, page query.Page, p core.Page[R]) error {
	page = page.Normalize()
	resp := pageResponse{Count: p.Count, Results: p.Results}
	if page.HasNext(p.Count) {
		link := pageLink(ctx, page.Number+1)
		resp.Next = &link
	}
	if page.HasPrevious() {
		link := pageLink(ctx, page.Number-1)
		resp.Previous = &link
	}
	return ctx.JSON(http.StatusOK, resp)
}

// pageLink is the request URL pointing at another page, other query parameters kept.
func pageLink(ctx echo.Context, number int) string {
	req := ctx.Request()
	q := req.URL.Query()
	q.Set(pageParam, strconv.Itoa(number))
	u := url.URL{
		Scheme:   ctx.Scheme(),
		Host:     req.Host,
		Path:     req.URL.Path,
		RawQuery: q.Encode(),
	}
	return u.String()
}
