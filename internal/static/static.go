// Package static mounts the flashcard content directory on a fiber app.
package static

import (
	"github.com/bilgisen/cardserve/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

// Config configures the file server
type Config struct {
	// Root is the absolute directory served at "/".
	Root string
	// Index is the file served for a directory request.
	// Optional. Default: "index.html"
	Index string
}

// Register serves cfg.Root at "/". File lookup, content types, directory
// listings, byte ranges and traversal checks are left to fiber. Requests the
// file server cannot answer end in a 404, or a 501 for methods other than
// GET and HEAD.
func Register(app *fiber.App, cfg Config) {
	if cfg.Index == "" {
		cfg.Index = "index.html"
	}

	app.Static("/", cfg.Root, fiber.Static{
		Browse:    true,
		ByteRange: true,
		Index:     cfg.Index,
		// Negative disables the file handler cache.
		CacheDuration: -1,
	})

	app.Use(NotFound)
}

// NotFound answers requests no file matched.
func NotFound(c *fiber.Ctx) error {
	switch c.Method() {
	case fiber.MethodGet, fiber.MethodHead:
		return fiber.NewError(fiber.StatusNotFound, "File not found")
	default:
		return middleware.UnsupportedMethod(c.Method())
	}
}
