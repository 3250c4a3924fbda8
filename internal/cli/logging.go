package cli

import (
	"io"

	"github.com/sirupsen/logrus"
)

// setupLogging routes structured logs to w; debug lowers the level.
func setupLogging(w io.Writer, debug bool) {
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors: false,
		FullTimestamp: true,
	})
	logrus.SetOutput(w)
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}
