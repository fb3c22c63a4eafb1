package router

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func serve(r *Router, method, uri string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	r.Handler(&ctx)
	return &ctx
}

func TestRouter_MatchesParams(t *testing.T) {
	r := New()
	r.GET("/v1/reports/{reportID}/actions/last", func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString("last:" + PathParam(ctx, "reportID"))
	})
	r.DELETE("/v1/reports/{reportID}/actions/{actionID}", func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(PathParam(ctx, "reportID") + "/" + PathParam(ctx, "actionID"))
	})

	ctx := serve(r, fasthttp.MethodGet, "/v1/reports/r1/actions/last")
	assert.Equal(t, "last:r1", string(ctx.Response.Body()))

	ctx = serve(r, fasthttp.MethodDelete, "/v1/reports/r1/actions/42")
	assert.Equal(t, "r1/42", string(ctx.Response.Body()))
}

func TestRouter_FallbackHandlers(t *testing.T) {
	r := New()
	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {})

	ctx := serve(r, fasthttp.MethodGet, "/nope")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())

	r.NotFound(func(ctx *fasthttp.RequestCtx) { WriteJSONError(ctx, fasthttp.StatusNotFound, "not found") })
	r.MethodNotAllowed(func(ctx *fasthttp.RequestCtx) {
		WriteJSONError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
	})

	ctx = serve(r, fasthttp.MethodPut, "/healthz")
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, ctx.Response.StatusCode())

	ctx = serve(r, fasthttp.MethodGet, "/healthz/extra")
	require.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	var body map[string]string
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, "not found", body["error"])
}

func TestRouter_EmptyParamDoesNotMatch(t *testing.T) {
	r := New()
	r.GET("/v1/reports/{reportID}/actions", func(ctx *fasthttp.RequestCtx) {})
	ctx := serve(r, fasthttp.MethodGet, "/v1/reports//actions")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

func TestRouter_Root(t *testing.T) {
	r := New()
	r.GET("/", func(ctx *fasthttp.RequestCtx) { ctx.SetBodyString("root") })
	assert.Equal(t, "root", string(serve(r, fasthttp.MethodGet, "/").Response.Body()))
}

func TestRouter_MethodsShareOnePattern(t *testing.T) {
	r := New()
	r.GET("/v1/reports/{reportID}/actions", func(ctx *fasthttp.RequestCtx) { ctx.SetBodyString("get") })
	r.PUT("/v1/reports/{reportID}/actions", func(ctx *fasthttp.RequestCtx) { ctx.SetBodyString("put") })
	r.PUT("/v1/reports/{reportID}/actions", func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString("put:" + PathParam(ctx, "reportID"))
	})

	assert.Equal(t, "get", string(serve(r, fasthttp.MethodGet, "/v1/reports/r1/actions").Response.Body()))
	assert.Equal(t, "put:r1", string(serve(r, fasthttp.MethodPut, "/v1/reports/r1/actions").Response.Body()))
	assert.Empty(t, PathParam(serve(r, fasthttp.MethodGet, "/v1/reports/r1/actions"), "missing"))
}
