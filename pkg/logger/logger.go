// Package logger builds the zerolog loggers used across notehub. Logs go
// to stdout by default; a file path or an arbitrary writer can be supplied
// instead, which tests use to capture output.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const permission = 0664

type LogBuild struct {
	writer io.Writer
	path   string
}

type LogData struct {
	writer  io.Writer
	LogFile *os.File
	Logger  zerolog.Logger
}

func New() *LogBuild {
	return &LogBuild{}
}

func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

func (build *LogBuild) FromBuffer(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	logData = new(LogData)
	logData.writer = os.Stdout
	if build.writer != nil {
		logData.writer = build.writer
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		logData.writer = zerolog.SyncWriter(logData.LogFile)
	}
	logData.Logger = zerolog.New(logData.writer).With().Timestamp().Logger()
	return
}

// Close releases the log file if Make opened one.
func (data *LogData) Close() error {
	if data.LogFile != nil {
		return data.LogFile.Close()
	}
	return nil
}
