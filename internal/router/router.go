// Package router resolves a request (method, path, query, fragment flag) to
// an Outcome by walking an ordered route table, first match wins.
package router

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"metaexplorer/internal/database"
	"metaexplorer/internal/metrics"
	"metaexplorer/internal/view"

	"github.com/sirupsen/logrus"
)

// Kind discriminates Outcome.
type Kind int

const (
	NotFound Kind = iota
	Document
	Fragment
	Redirect
)

func (k Kind) String() string {
	switch k {
	case Document:
		return "document"
	case Fragment:
		return "fragment"
	case Redirect:
		return "redirect"
	default:
		return "not_found"
	}
}

// Outcome is the result of resolving a request. Page is set for Document
// and Fragment, Location for Redirect.
type Outcome struct {
	Kind     Kind
	Page     view.Page
	Location string
	Route    string
}

// Request is the transport-independent view of an incoming request.
type Request struct {
	Method   string
	Path     string
	Query    url.Values
	Fragment bool
}

// Mode restricts a route to fragment or document requests.
type Mode int

const (
	Any Mode = iota
	DocumentOnly
	FragmentOnly
)

func (m Mode) accepts(fragment bool) bool {
	switch m {
	case DocumentOnly:
		return !fragment
	case FragmentOnly:
		return fragment
	default:
		return true
	}
}

// params are the values a shape captured from the path.
type params struct {
	id      int64
	segment string
}

// shape is one of the closed set of path matchers.
type shape interface {
	match(path string) (params, bool)
}

// exact matches one literal path.
type exact string

func (e exact) match(path string) (params, bool) {
	return params{}, path == string(e)
}

// numeric matches prefix followed by one decimal segment.
type numeric string

func (n numeric) match(path string) (params, bool) {
	rest, ok := strings.CutPrefix(path, string(n))
	if !ok {
		return params{}, false
	}
	id, ok := parseID(rest)
	return params{id: id}, ok
}

// numericSuffix matches prefix, a decimal segment, then one of a fixed set
// of trailing segments.
type numericSuffix struct {
	prefix   string
	suffixes []string
}

func (n numericSuffix) match(path string) (params, bool) {
	rest, ok := strings.CutPrefix(path, n.prefix)
	if !ok {
		return params{}, false
	}
	digits, segment, ok := strings.Cut(rest, "/")
	if !ok {
		return params{}, false
	}
	id, ok := parseID(digits)
	if !ok {
		return params{}, false
	}
	for _, s := range n.suffixes {
		if segment == s {
			return params{id: id, segment: segment}, true
		}
	}
	return params{}, false
}

// parseID accepts only ASCII digits that fit an int64.
func parseID(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil
}

// handler produces the outcome of a matched route.
type handler func(ctx context.Context, req Request, p params) (Outcome, error)

type route struct {
	name  string
	shape shape
	mode  Mode
	serve handler
}

// Resolver dispatches requests over the route table. It holds no
// per-request state.
type Resolver struct {
	views  *view.Assembler
	logger *logrus.Logger
	routes []route
}

// New builds a Resolver over an assembler.
func New(views *view.Assembler, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.New()
	}
	r := &Resolver{views: views, logger: logger}
	r.routes = r.table()
	return r
}

// Resolve matches req against the table. A missing primary entity or a
// malformed parameter is a NotFound outcome; the error return is reserved
// for store failures.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Outcome, error) {
	if req.Method != http.MethodGet {
		metrics.RecordResolve("none", NotFound.String())
		return Outcome{Kind: NotFound}, nil
	}

	for _, rt := range r.routes {
		if !rt.mode.accepts(req.Fragment) {
			continue
		}
		p, ok := rt.shape.match(req.Path)
		if !ok {
			continue
		}

		out, err := rt.serve(ctx, req, p)
		switch {
		case errors.Is(err, database.ErrNotFound), errors.Is(err, errBadParam):
			r.logger.WithError(err).WithFields(logrus.Fields{
				"route": rt.name,
				"path":  req.Path,
			}).Debug("Resolved to not found")
			out, err = Outcome{Kind: NotFound}, nil
		case err != nil:
			metrics.RecordResolve(rt.name, "error")
			return Outcome{Kind: NotFound, Route: rt.name}, err
		}
		out.Route = rt.name
		metrics.RecordResolve(rt.name, out.Kind.String())
		return out, nil
	}

	metrics.RecordResolve("none", NotFound.String())
	return Outcome{Kind: NotFound}, nil
}

var errBadParam = errors.New("malformed query parameter")

// Pagination defaults for fragment list routes.
const (
	DefaultLimit  = 10
	DefaultOffset = 0
)

// intParam reads a non-negative integer parameter. An absent key yields def;
// a present key that is empty, non-integral or negative is an error.
func intParam(q url.Values, key string, def int) (int, error) {
	if !q.Has(key) {
		return def, nil
	}
	n, err := strconv.Atoi(q.Get(key))
	if err != nil || n < 0 {
		return 0, errBadParam
	}
	return n, nil
}

func pagination(q url.Values) (limit, offset int, err error) {
	if limit, err = intParam(q, "limit", DefaultLimit); err != nil {
		return 0, 0, err
	}
	if offset, err = intParam(q, "offset", DefaultOffset); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}
