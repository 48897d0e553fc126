package logging

import (
	"os"

	"github.com/btcsuite/btclog"
)

// New builds the daemon's default logging backend: a console handler, plus
// an optional rotating file handler when dir is non-empty. The returned
// SLogger is suitable for passing to any subsystem's UseLogger function.
func New(dir string, maxFiles, maxFileSizeMB int) (btclog.Logger, *RotatingLogWriter, error) {
	var handlers []btclog.Handler
	handlers = append(handlers, btclog.NewDefaultHandler(os.Stderr))

	var writer *RotatingLogWriter
	if dir != "" {
		writer = NewRotatingLogWriter()
		err := writer.InitLogRotator(&LogRotatorConfig{
			LogDir:         dir,
			MaxLogFiles:    maxFiles,
			MaxLogFileSize: maxFileSizeMB,
		})
		if err != nil {
			return nil, nil, err
		}

		handlers = append(handlers, btclog.NewDefaultHandler(writer))
	}

	combined := NewHandlerSet(handlers...)

	return btclog.NewSLogger(combined), writer, nil
}
