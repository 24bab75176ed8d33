package logging

import (
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/DeRuina/timberjack"
	"github.com/mrsingh-rishi/speech-relay/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NewLogger creates a logrus.Logger from cfg. Output always goes to stdout
// and, when cfg.File is set, to a rotated log file as well.
func NewLogger(cfg config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level := logrus.InfoLevel
	if cfg.Level != "" {
		lv, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, errors.Wrapf(err, "logging: level %q", cfg.Level)
		}
		level = lv
	}
	logger.SetLevel(level)

	var output io.Writer = os.Stdout
	if cfg.File != "" {
		output = io.MultiWriter(os.Stdout, &timberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
	}
	logger.SetOutput(output)

	logger.SetFormatter(&SourceFormatter{
		Underlying: &logrus.TextFormatter{
			FullTimestamp: true,
			// x_file_source replaces the default caller fields
			CallerPrettyfier: func(*runtime.Frame) (string, string) {
				return "", ""
			},
		},
	})
	logger.SetReportCaller(true)

	return logger, nil
}
