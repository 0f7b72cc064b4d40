package web

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/Jobalyzer/internal/core"
)

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// pageParams are validated only when at least one of page or limit is set.
type pageParams struct {
	Page  int `validate:"gte=1"`
	Limit int `validate:"gte=1"`
}

type ingestParams struct {
	// Max overrides the record cap; negative disables it, 0 keeps the default.
	Max    int    `validate:"gte=-1"`
	Source string `validate:"max=255"`
}

// parsePage reads page and limit. With neither present the zero Page is
// returned; otherwise both must be positive integers.
func parsePage(r *http.Request) (core.Page, error) {
	q := r.URL.Query()
	rawPage, rawLimit := q.Get("page"), q.Get("limit")
	if rawPage == "" && rawLimit == "" {
		return core.Page{}, nil
	}

	var p pageParams
	var err error
	if p.Page, err = atoiOrZero(rawPage); err != nil {
		return core.Page{}, invalidParam("page", rawPage)
	}
	if p.Limit, err = atoiOrZero(rawLimit); err != nil {
		return core.Page{}, invalidParam("limit", rawLimit)
	}
	if err := validate.Struct(p); err != nil {
		return core.Page{}, core.NewError(core.ErrInvalidCriteria, "page and limit must both be positive integers", err)
	}
	return core.Page{Number: p.Page, Limit: p.Limit}, nil
}

func parseIngestParams(r *http.Request, defaultSource string) (ingestParams, error) {
	q := r.URL.Query()
	p := ingestParams{Source: q.Get("source")}
	if p.Source == "" {
		p.Source = defaultSource
	}

	var err error
	if p.Max, err = atoiOrZero(q.Get("max")); err != nil {
		return ingestParams{}, invalidParam("max", q.Get("max"))
	}
	if err := validate.Struct(p); err != nil {
		return ingestParams{}, core.NewError(core.ErrInvalidCriteria, "invalid ingestion parameters", err)
	}
	return p, nil
}

// parseCriteria collects the first value of every query parameter except
// the pagination keys. Unrecognized keys are ignored by the query builder.
func parseCriteria(r *http.Request) core.Criteria {
	c := core.Criteria{}
	for key, values := range r.URL.Query() {
		if key == "page" || key == "limit" || len(values) == 0 {
			continue
		}
		c[key] = values[0]
	}
	return c
}

func atoiOrZero(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func invalidParam(name, value string) error {
	return core.NewError(core.ErrInvalidCriteria, "invalid "+name+" value: "+strconv.Quote(value), nil)
}
