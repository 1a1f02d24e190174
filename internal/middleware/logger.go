package middleware

import (
    "fmt"
    "os"
    "strconv"
    "time"

    "github.com/bilgisen/cardserve/internal/logger"
    "github.com/gofiber/fiber/v2"
    "github.com/rs/zerolog"
)

// AccessLogConfig defines the config for the access log middleware
type AccessLogConfig struct {
    // Skip defines a function to skip middleware.
    // Optional. Default: nil
    Next func(c *fiber.Ctx) bool

    // Logger formats and writes the lines.
    // Optional. Default: logger.NewAccessLogger(os.Stdout)
    Logger *zerolog.Logger

    // Now returns the request timestamp.
    // Optional. Default: time.Now
    Now func() time.Time

    // TimeFormat is the layout of the bracketed timestamp.
    // Optional. Default: logger.AccessTimeFormat
    TimeFormat string
}

// AccessLog writes one line per request in the form
//
//	[19/Oct/2026 09:05:07] "GET /A1.html HTTP/1.1" 200 512
//
// preceded by a "code N, message M" line for error responses.
func AccessLog(config ...AccessLogConfig) fiber.Handler {
    var cfg AccessLogConfig
    if len(config) > 0 {
        cfg = config[0]
    }
    cfg = cfg.withDefaults()

    return func(c *fiber.Ctx) error {
        if cfg.Next != nil && cfg.Next(c) {
            return c.Next()
        }

        if err := c.Next(); err != nil {
            if err := c.App().ErrorHandler(c, err); err != nil {
                _ = c.SendStatus(fiber.StatusInternalServerError)
            }
        }

        msg, _ := c.Locals(errorMessageKey).(string)
        cfg.write(requestLine(c), c.Response().StatusCode(), responseSize(c), msg)

        return nil
    }
}

func (cfg AccessLogConfig) withDefaults() AccessLogConfig {
    if cfg.Logger == nil {
        l := logger.NewAccessLogger(os.Stdout)
        cfg.Logger = &l
    }
    if cfg.Now == nil {
        cfg.Now = time.Now
    }
    if cfg.TimeFormat == "" {
        cfg.TimeFormat = logger.AccessTimeFormat
    }
    return cfg
}

// write logs the request line, preceded by an error line for status >= 400.
// An empty msg falls back to the status text.
func (cfg AccessLogConfig) write(line string, status int, size, msg string) {
    ts := cfg.Now().Format(cfg.TimeFormat)

    if status >= fiber.StatusBadRequest {
        if msg == "" {
            msg = fiber.NewError(status).Message
        }
        cfg.Logger.Log().
            Str(zerolog.TimestampFieldName, ts).
            Msgf("code %d, message %s", status, msg)
    }

    cfg.Logger.Log().
        Str(zerolog.TimestampFieldName, ts).
        Msgf("\"%s\" %d %s", line, status, size)
}

func requestLine(c *fiber.Ctx) string {
    return fmt.Sprintf("%s %s %s", c.Method(), c.OriginalURL(), c.Request().Header.Protocol())
}

// responseSize reports the body length without draining streamed bodies.
func responseSize(c *fiber.Ctx) string {
    resp := c.Response()
    if resp.IsBodyStream() || c.Method() == fiber.MethodHead {
        if n := resp.Header.ContentLength(); n >= 0 {
            return strconv.Itoa(n)
        }
        return "-"
    }
    return strconv.Itoa(len(resp.Body()))
}
