package logger

import (
	"fmt"
	"log/slog"
	"os"
)

var log *slog.Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

// Init configures the process-wide logger. Development gets a readable
// text handler, everything else JSON.
func Init(environment string) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if environment == "development" || environment == "local" {
		opts.Level = slog.LevelDebug
		log = slog.New(slog.NewTextHandler(os.Stdout, opts))
		return
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func Debug(msg string, args ...any) {
	log.Debug(msg, normalize(args)...)
}

func Info(msg string, args ...any) {
	log.Info(msg, normalize(args)...)
}

func Warn(msg string, args ...any) {
	log.Warn(msg, normalize(args)...)
}

func Error(msg string, args ...any) {
	log.Error(msg, normalize(args)...)
}

func Fatal(msg string, args ...any) {
	log.Error(msg, normalize(args)...)
	os.Exit(1)
}

// normalize lets call sites pass bare errors (logger.Error("msg", err))
// without breaking slog's key/value pairing.
func normalize(args []any) []any {
	out := make([]any, 0, len(args)+1)
	for _, a := range args {
		if err, ok := a.(error); ok {
			out = append(out, "error", err.Error())
			continue
		}
		out = append(out, a)
	}
	if len(out)%2 != 0 {
		last := fmt.Sprint(out[len(out)-1])
		out = append(out[:len(out)-1], "value", last)
	}

	return out
}
