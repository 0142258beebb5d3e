// Package httputil holds the fasthttp response helpers shared by the audit
// service handlers.
package httputil

import (
	"encoding/json"

	"github.com/valyala/fasthttp"

	"github.com/sitescan/engine/pkg/types"
)

// JSON writes v as the response body with the given status code.
func JSON(ctx *fasthttp.RequestCtx, statusCode int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"ok":false,"errors":["encoding failed"]}`)
		return
	}
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

// JSONErrors writes the {ok:false, errors:[...]} error shape.
func JSONErrors(ctx *fasthttp.RequestCtx, statusCode int, errs ...string) {
	JSON(ctx, statusCode, types.ErrorResponse{OK: false, Errors: errs})
}

// ApplyCORS sets permissive CORS headers, echoing the request origin and any
// requested headers.
func ApplyCORS(ctx *fasthttp.RequestCtx) {
	origin := string(ctx.Request.Header.Peek("Origin"))
	if origin == "" {
		origin = "*"
	}
	ctx.Response.Header.Set("Access-Control-Allow-Origin", origin)
	ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	ctx.Response.Header.Set("Vary", "Origin")

	if requested := string(ctx.Request.Header.Peek("Access-Control-Request-Headers")); requested != "" {
		ctx.Response.Header.Set("Access-Control-Allow-Headers", requested)
	} else {
		ctx.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type")
	}
}

// Preflight answers an OPTIONS request with 204 and CORS headers.
func Preflight(ctx *fasthttp.RequestCtx) {
	ApplyCORS(ctx)
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}
