package middleware

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/valyala/fasthttp"
)

// MethodsConfig defines the config for the unknown method guard
type MethodsConfig struct {
	// Methods are the request methods the app routes.
	// Optional. Default: fiber.DefaultMethods
	Methods []string

	// AccessLog records rejected requests like any other.
	// Optional. Default: AccessLogConfig{}
	AccessLog AccessLogConfig
}

// UnknownMethods answers methods outside cfg.Methods with 501 and the error
// page. Fiber would otherwise reject them with a bare 400 before any
// middleware runs.
func UnknownMethods(next fasthttp.RequestHandler, config ...MethodsConfig) fasthttp.RequestHandler {
	var cfg MethodsConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if len(cfg.Methods) == 0 {
		cfg.Methods = fiber.DefaultMethods
	}
	access := cfg.AccessLog.withDefaults()

	return func(ctx *fasthttp.RequestCtx) {
		method := string(ctx.Method())
		if lo.Contains(cfg.Methods, method) {
			next(ctx)
			return
		}

		e := UnsupportedMethod(method)
		body := errorBody(e.Code, e.Message)
		ctx.SetStatusCode(e.Code)
		ctx.SetContentType(fiber.MIMETextHTMLCharsetUTF8)
		ctx.SetBodyString(body)

		line := fmt.Sprintf("%s %s %s", method, ctx.RequestURI(), ctx.Request.Header.Protocol())
		access.write(line, e.Code, strconv.Itoa(len(body)), e.Message)
	}
}

// UnsupportedMethod is the error for a request method no handler serves.
func UnsupportedMethod(method string) *fiber.Error {
	return fiber.NewError(fiber.StatusNotImplemented, fmt.Sprintf("Unsupported method ('%s')", method))
}
