package cmd

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "2006-01-02 15:04:05.000"

type logOptions struct {
	debug  bool
	format string
	file   string
}

// newLogger builds the process logger. With a log file, output goes to the
// rotated file only, or to both the file and stderr when debugging.
func newLogger(opts logOptions, stderr io.Writer) (*log.Logger, func() error, error) {

	logger := log.New()
	closer := func() error { return nil }

	switch strings.ToLower(opts.format) {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{
			TimestampFormat: timestampFormat,
		})
	default:
		return nil, nil, fmt.Errorf("unknown log format '%s'", opts.format)
	}

	logger.SetLevel(log.InfoLevel)
	if opts.debug {
		logger.SetLevel(log.DebugLevel)
	}

	logger.SetOutput(stderr)
	if opts.file != "" {
		rotated := &lumberjack.Logger{
			Filename:   opts.file,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		closer = rotated.Close
		if opts.debug {
			logger.SetOutput(io.MultiWriter(stderr, rotated))
		} else {
			logger.SetOutput(rotated)
		}
	}

	return logger, closer, nil
}
