package query

import (
	"strconv"
	"strings"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Page is one slice of a listing: Number starts at 1.
type Page struct {
	Limit  int
	Number int
}

// ParsePage reads the `limit` and `page` query parameters.
// Missing or invalid values fall back to the defaults; limit is capped at MaxLimit.
func ParsePage(limit, page string) Page {
	p := Page{Limit: DefaultLimit, Number: 1}
	if n, err := strconv.Atoi(strings.TrimSpace(limit)); err == nil && n > 0 {
		p.Limit = n
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if n, err := strconv.Atoi(strings.TrimSpace(page)); err == nil && n > 0 {
		p.Number = n
	}
	return p
}

func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Number <= 0 {
		p.Number = 1
	}
	return p
}

func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.Limit
}

// HasNext reports whether rows remain after this page, given the total count.
func (p Page) HasNext(count int) bool {
	p = p.Normalize()
	return p.Number*p.Limit < count
}

func (p Page) HasPrevious() bool {
	return p.Normalize().Number > 1
}
