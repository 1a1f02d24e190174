package logger

import (
    "fmt"
    "io"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    "github.com/rs/zerolog"
)

// AccessTimeFormat is the day/mon/year hh:mm:ss layout used in access log lines
const AccessTimeFormat = "02/Jan/2006 15:04:05"

var (
    once   sync.Once
    logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Config holds the configuration for the logger
type Config struct {
    Level  string
    Output string // "stdout", "stderr", or file path
    Pretty bool   // Enable pretty logging for development
}

// Init initializes the global logger
func Init(cfg Config) error {
    var err error
    once.Do(func() {
        level, parseErr := zerolog.ParseLevel(strings.ToLower(cfg.Level))
        if parseErr != nil {
            level = zerolog.InfoLevel
        }
        zerolog.SetGlobalLevel(level)

        zerolog.TimeFieldFormat = time.RFC3339Nano

        var output io.Writer
        output, err = openOutput(cfg.Output)
        if err != nil {
            return
        }

        if cfg.Pretty {
            logger = zerolog.New(zerolog.ConsoleWriter{
                Out:        output,
                TimeFormat: "2006-01-02 15:04:05",
            })
        } else {
            logger = zerolog.New(output)
        }

        logger = logger.With().
            Timestamp().
            Caller().
            Logger()

        zerolog.DefaultContextLogger = &logger
    })
    return err
}

// Get returns the logger instance
func Get() *zerolog.Logger {
    return &logger
}

// NewAccessLogger returns a logger that renders each event as
// "[<time>] <message>". Callers supply the time field themselves, already
// formatted, under zerolog.TimestampFieldName.
func NewAccessLogger(out io.Writer) zerolog.Logger {
    return zerolog.New(zerolog.ConsoleWriter{
        Out:        out,
        NoColor:    true,
        PartsOrder: []string{zerolog.TimestampFieldName, zerolog.MessageFieldName},
        FormatTimestamp: func(i interface{}) string {
            return fmt.Sprintf("[%v]", i)
        },
    })
}

func openOutput(output string) (io.Writer, error) {
    switch output {
    case "", "stderr":
        return os.Stderr, nil
    case "stdout":
        return os.Stdout, nil
    }

    dir := filepath.Dir(output)
    if dir != "." && dir != string(filepath.Separator) {
        if err := os.MkdirAll(dir, 0755); err != nil {
            return nil, fmt.Errorf("failed to create log directory: %w", err)
        }
    }

    file, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
    if err != nil {
        return nil, fmt.Errorf("failed to open log file: %w", err)
    }
    return file, nil
}
