package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/valyala/fasthttp"
)

// Header is a single response header
type Header struct {
	Key   string
	Value string
}

// HeadersConfig defines the config for the response headers decorators
type HeadersConfig struct {
	// Headers are set on every response, in order.
	// Optional. Default: DefaultHeaders
	Headers []Header
}

// DefaultHeaders allow any origin and disable caching
var DefaultHeaders = []Header{
	{Key: fiber.HeaderAccessControlAllowOrigin, Value: "*"},
	{Key: fiber.HeaderAccessControlAllowMethods, Value: "GET, POST, OPTIONS"},
	{Key: fiber.HeaderAccessControlAllowHeaders, Value: "Content-Type"},
	{Key: fiber.HeaderCacheControl, Value: "no-cache, no-store, must-revalidate"},
}

func headersConfig(config []HeadersConfig) HeadersConfig {
	cfg := HeadersConfig{Headers: DefaultHeaders}
	if len(config) > 0 && len(config[0].Headers) > 0 {
		cfg = config[0]
	}
	return cfg
}

// ResponseHeaders wraps the server's request handler so every response it
// writes carries the headers. Wrapping at the fasthttp level also covers the
// replies fiber sends before its own middleware chain runs.
func ResponseHeaders(next fasthttp.RequestHandler, config ...HeadersConfig) fasthttp.RequestHandler {
	cfg := headersConfig(config)

	return func(ctx *fasthttp.RequestCtx) {
		next(ctx)
		setHeaders(&ctx.Response.Header, cfg.Headers)
	}
}

// ErrorHeaders wraps the server's ErrorHandler, which answers requests
// fasthttp could not read or parse. A nil next replies 400 Bad Request.
func ErrorHeaders(next func(*fasthttp.RequestCtx, error), config ...HeadersConfig) func(*fasthttp.RequestCtx, error) {
	cfg := headersConfig(config)

	return func(ctx *fasthttp.RequestCtx, err error) {
		if next != nil {
			next(ctx, err)
		} else {
			ctx.Error(fasthttp.StatusMessage(fasthttp.StatusBadRequest), fasthttp.StatusBadRequest)
		}
		setHeaders(&ctx.Response.Header, cfg.Headers)
	}
}

func setHeaders(h *fasthttp.ResponseHeader, headers []Header) {
	lo.ForEach(headers, func(header Header, _ int) {
		h.Set(header.Key, header.Value)
	})
}
