package router

import (
	"strings"

	"github.com/valyala/fasthttp"
)

// Router dispatches fasthttp requests by path pattern and method. Patterns use
// {name} for a single non-empty path segment. Patterns are tried in the order
// they were first registered.
type Router struct {
	patterns         []*pattern
	notFound         fasthttp.RequestHandler
	methodNotAllowed fasthttp.RequestHandler
}

// pattern is one registered path with its handlers per method.
type pattern struct {
	raw      string
	parts    []string
	handlers map[string]fasthttp.RequestHandler
}

func New() *Router {
	return &Router{}
}

// Handler is the fasthttp.RequestHandler for the whole route table.
func (r *Router) Handler(ctx *fasthttp.RequestCtx) {
	method := string(ctx.Method())
	parts := splitPath(string(ctx.Path()))

	pathKnown := false
	for _, p := range r.patterns {
		params, ok := p.bind(parts)
		if !ok {
			continue
		}
		h, ok := p.handlers[method]
		if !ok {
			pathKnown = true
			continue
		}
		for k, v := range params {
			ctx.SetUserValue(k, v)
		}
		h(ctx)
		return
	}

	switch {
	case pathKnown && r.methodNotAllowed != nil:
		r.methodNotAllowed(ctx)
	case r.notFound != nil:
		r.notFound(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (r *Router) GET(path string, h fasthttp.RequestHandler) {
	r.Handle(fasthttp.MethodGet, path, h)
}

func (r *Router) PUT(path string, h fasthttp.RequestHandler) {
	r.Handle(fasthttp.MethodPut, path, h)
}

func (r *Router) DELETE(path string, h fasthttp.RequestHandler) {
	r.Handle(fasthttp.MethodDelete, path, h)
}

// Handle registers h for method on path. Registering the same pair twice
// replaces the earlier handler.
func (r *Router) Handle(method, path string, h fasthttp.RequestHandler) {
	for _, p := range r.patterns {
		if p.raw == path {
			p.handlers[method] = h
			return
		}
	}
	r.patterns = append(r.patterns, &pattern{
		raw:      path,
		parts:    splitPath(path),
		handlers: map[string]fasthttp.RequestHandler{method: h},
	})
}

// NotFound sets the handler for paths no pattern matches.
func (r *Router) NotFound(h fasthttp.RequestHandler) {
	r.notFound = h
}

// MethodNotAllowed sets the handler for paths registered only under other
// methods. Without it those requests fall through to NotFound.
func (r *Router) MethodNotAllowed(h fasthttp.RequestHandler) {
	r.methodNotAllowed = h
}

// bind matches request segments against the pattern and returns the captured
// parameters.
func (p *pattern) bind(parts []string) (map[string]string, bool) {
	if len(parts) != len(p.parts) {
		return nil, false
	}
	var params map[string]string
	for i, want := range p.parts {
		got := parts[i]
		name, isParam := paramName(want)
		if !isParam {
			if got != want {
				return nil, false
			}
			continue
		}
		if got == "" {
			return nil, false
		}
		if params == nil {
			params = make(map[string]string, 2)
		}
		params[name] = got
	}
	return params, true
}

func paramName(part string) (string, bool) {
	if len(part) > 2 && part[0] == '{' && part[len(part)-1] == '}' {
		return part[1 : len(part)-1], true
	}
	return "", false
}

// splitPath turns "/a/b" into [a b]; the root path has no segments.
func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// PathParam returns a path parameter captured by the router.
func PathParam(ctx *fasthttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}
