// internal/parser/detector.go
package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

type FileType string

const (
	FileTypeAppleHealth FileType = "apple_health"
	FileTypeGPX         FileType = "gpx"
	FileTypeCSV         FileType = "csv"
	FileTypeFIT         FileType = "fit"
	FileTypeUnknown     FileType = "unknown"
)

// sniffLines bounds how far into an .xml file the detector looks for a marker
const sniffLines = 50

// maxLineSize caps one scanned line. Longer lines are read in chunks during
// detection, and the streaming parser falls back to tree mode on them.
var maxLineSize = 64 << 20

// Extension returns the lowercased text after the last dot of a filename.
// A name without a dot is returned whole.
func Extension(filename string) string {
	name := strings.ToLower(filename)
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// byExtension resolves unambiguous extensions. ok is false for xml, which
// needs a content sniff.
func byExtension(ext string) (ft FileType, ok bool, err error) {
	switch ext {
	case "gpx":
		return FileTypeGPX, true, nil
	case "csv":
		return FileTypeCSV, true, nil
	case "fit":
		return FileTypeFIT, true, nil
	case "xml":
		return FileTypeUnknown, false, nil
	}
	return FileTypeUnknown, false, &UnsupportedFormatError{Extension: ext}
}

// CheckExtension rejects a filename whose extension no parser handles,
// without looking at any content.
func CheckExtension(filename string) error {
	_, _, err := byExtension(Extension(filename))
	return err
}

// classifyXML checks one chunk of text for Apple Health or GPX markers.
func classifyXML(text string) FileType {
	if strings.Contains(text, "<HealthData") || strings.Contains(text, "Workout") {
		return FileTypeAppleHealth
	}
	if strings.Contains(text, "<gpx") || strings.Contains(text, "<trk") {
		return FileTypeGPX
	}
	return FileTypeUnknown
}

// DetectFromContent picks a format for an in-memory upload. XML content is
// classified by a substring check over the whole text.
func DetectFromContent(filename, content string) (FileType, error) {
	ext := Extension(filename)
	ft, ok, err := byExtension(ext)
	if err != nil || ok {
		return ft, err
	}

	if ft = classifyXML(content); ft == FileTypeUnknown {
		return ft, &UnsupportedFormatError{Extension: ext}
	}
	return ft, nil
}

// DetectFromReader scans at most sniffLines lines of r for an XML marker.
func DetectFromReader(filename string, r io.Reader) (FileType, error) {
	ext := Extension(filename)
	ft, ok, err := byExtension(ext)
	if err != nil || ok {
		return ft, err
	}

	scanner := newLineScanner(r)
	scanner.Split(boundedLines)
	for n := 0; n < sniffLines && scanner.Scan(); n++ {
		if ft = classifyXML(scanner.Text()); ft != FileTypeUnknown {
			return ft, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return FileTypeUnknown, fmt.Errorf("scan %s: %w", filename, err)
	}

	return FileTypeUnknown, &UnsupportedFormatError{Extension: ext}
}

// DetectFromFile opens path for a detection pass of its own; the parser later
// re-opens the file so nothing it needs is consumed here.
func DetectFromFile(filename, path string) (FileType, error) {
	ft, ok, err := byExtension(Extension(filename))
	if err != nil || ok {
		return ft, err
	}

	file, err := os.Open(path)
	if err != nil {
		return FileTypeUnknown, err
	}
	defer file.Close()

	return DetectFromReader(filename, file)
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	initial := 64 * 1024
	if initial > maxLineSize {
		initial = maxLineSize
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initial), maxLineSize)
	return scanner
}

// boundedLines splits like bufio.ScanLines but hands out a full buffer as a
// token instead of failing on a line longer than maxLineSize.
func boundedLines(data []byte, atEOF bool) (int, []byte, error) {
	advance, token, err := bufio.ScanLines(data, atEOF)
	if advance == 0 && token == nil && err == nil && len(data) >= maxLineSize {
		return len(data), data, nil
	}
	return advance, token, err
}
