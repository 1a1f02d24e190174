package middleware

import (
    "errors"
    "fmt"
    "html"

    "github.com/bilgisen/cardserve/internal/logger"
    "github.com/gofiber/fiber/v2"
    "github.com/rs/zerolog"
)

const errorMessageKey = "errorMessage"

const errorPage = `<!DOCTYPE HTML>
<html lang="en">
    <head>
        <meta charset="utf-8">
        <title>Error response</title>
    </head>
    <body>
        <h1>Error response</h1>
        <p>Error code: %d</p>
        <p>Message: %s.</p>
    </body>
</html>
`

// NewErrorHandler returns the fiber ErrorHandler. It renders errors as a
// small HTML page and logs them to l, or to the global logger when l is nil.
// Server faults log at error level, everything the client caused at debug.
// A failing request never stops the server.
func NewErrorHandler(l *zerolog.Logger) fiber.ErrorHandler {
    return func(c *fiber.Ctx, err error) error {
        log := l
        if log == nil {
            log = logger.Get()
        }

        code := fiber.StatusInternalServerError
        msg := fiber.ErrInternalServerError.Message

        var e *fiber.Error
        if errors.As(err, &e) {
            code = e.Code
            msg = e.Message
        }

        event := log.Debug()
        if code >= fiber.StatusInternalServerError && code != fiber.StatusNotImplemented {
            event = log.Error()
        }
        event.
            Err(err).
            Str("method", c.Method()).
            Str("path", c.Path()).
            Int("status", code).
            Msg("HTTP error")

        c.Locals(errorMessageKey, msg)
        c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
        return c.Status(code).SendString(errorBody(code, msg))
    }
}

func errorBody(code int, msg string) string {
    return fmt.Sprintf(errorPage, code, html.EscapeString(msg))
}
