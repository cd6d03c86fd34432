package parser

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sstent/runlog/internal/models"
)

// NewParser returns the parser for a detected format. streaming selects the
// line-based Apple Health reader for exports read from disk.
func NewParser(fileType FileType, streaming bool, logger *slog.Logger) (Parser, error) {
	switch fileType {
	case FileTypeAppleHealth:
		if streaming {
			return NewAppleHealthStreamParser(logger), nil
		}
		return NewAppleHealthParser(logger), nil
	case FileTypeGPX:
		return NewGPXParser(logger), nil
	case FileTypeCSV:
		return NewCSVParser(logger), nil
	case FileTypeFIT:
		return NewFITParser(logger), nil
	default:
		return nil, &UnsupportedFormatError{Extension: string(fileType)}
	}
}

// ParseFile parses the file at path with the streaming parsers. An Apple
// Health export with a line longer than maxLineSize (a minified export) is
// parsed again in tree mode.
func ParseFile(fileType FileType, path string, logger *slog.Logger) ([]models.Run, error) {
	runs, err := parsePath(fileType, true, path, logger)
	if fileType == FileTypeAppleHealth && errors.Is(err, bufio.ErrTooLong) {
		loggerOrDefault(logger).Info("export has overlong lines, using tree mode", "path", path)
		return parsePath(fileType, false, path, logger)
	}
	return runs, err
}

func parsePath(fileType FileType, streaming bool, path string, logger *slog.Logger) ([]models.Run, error) {
	p, err := NewParser(fileType, streaming, logger)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	return p.Parse(file)
}
