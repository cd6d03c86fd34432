package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtension(t *testing.T) {
	assert.Equal(t, "gpx", Extension("Morning Run.GPX"))
	assert.Equal(t, "xml", Extension("apple_health_export/export.xml"))
	assert.Equal(t, "gz", Extension("export.xml.gz"))
	assert.Equal(t, "export", Extension("export"))
}

func TestDetectFromContent(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		want     FileType
	}{
		{"gpx extension", "run.gpx", "", FileTypeGPX},
		{"csv extension", "runs.CSV", "", FileTypeCSV},
		{"fit extension", "activity.fit", "", FileTypeFIT},
		{"health export", "export.xml", `<?xml version="1.0"?>` + "\n" + `<HealthData locale="en_US">`, FileTypeAppleHealth},
		{"gpx in xml", "data.xml", `<gpx version="1.1">`, FileTypeGPX},
		{"track in xml", "data.xml", "<root>\n<trk></trk>\n</root>", FileTypeGPX},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFromContent(tt.filename, tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectUnsupported(t *testing.T) {
	_, err := DetectFromContent("notes.txt", "Workout")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	var unsupported *UnsupportedFormatError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "txt", unsupported.Extension)

	_, err = DetectFromContent("data.xml", "<root><item/></root>")
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "xml", unsupported.Extension)
}

func TestDetectFromReaderScanWindow(t *testing.T) {
	filler := strings.Repeat("<item/>\n", sniffLines)

	_, err := DetectFromReader("late.xml", strings.NewReader(filler+`<gpx version="1.1">`))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	got, err := DetectFromReader("early.xml", strings.NewReader(filler[:len(filler)-len("<item/>\n")]+`<gpx version="1.1">`))
	require.NoError(t, err)
	assert.Equal(t, FileTypeGPX, got)
}

func TestDetectFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upload-1234")
	require.NoError(t, os.WriteFile(path, []byte("<gpx version=\"1.1\">\n<trk></trk>\n</gpx>\n"), 0644))

	got, err := DetectFromFile("data.xml", path)
	require.NoError(t, err)
	assert.Equal(t, FileTypeGPX, got)

	// Extension-only formats never touch the file.
	got, err = DetectFromFile("runs.csv", filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Equal(t, FileTypeCSV, got)
}

func TestNewParser(t *testing.T) {
	p, err := NewParser(FileTypeAppleHealth, true, discardLogger)
	require.NoError(t, err)
	assert.IsType(t, &AppleHealthStreamParser{}, p)

	p, err = NewParser(FileTypeAppleHealth, false, discardLogger)
	require.NoError(t, err)
	assert.IsType(t, &AppleHealthParser{}, p)

	p, err = NewParser(FileTypeCSV, true, discardLogger)
	require.NoError(t, err)
	assert.IsType(t, &CSVParser{}, p)

	_, err = NewParser(FileTypeUnknown, false, discardLogger)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCheckExtension(t *testing.T) {
	assert.NoError(t, CheckExtension("export.XML"))
	assert.NoError(t, CheckExtension("ride.fit"))
	assert.ErrorIs(t, CheckExtension("notes.txt"), ErrUnsupportedFormat)
	assert.ErrorIs(t, CheckExtension("export"), ErrUnsupportedFormat)
}

func shrinkMaxLineSize(t *testing.T, size int) {
	t.Helper()
	saved := maxLineSize
	maxLineSize = size
	t.Cleanup(func() { maxLineSize = saved })
}

func TestDetectFromReaderOverlongLine(t *testing.T) {
	shrinkMaxLineSize(t, 256)

	minified := `<?xml version="1.0"?><HealthData locale="en_US">` + strings.Repeat(`<Record type="x"/>`, 100) + `</HealthData>`
	got, err := DetectFromReader("export.xml", strings.NewReader(minified))
	require.NoError(t, err)
	assert.Equal(t, FileTypeAppleHealth, got)

	late := strings.Repeat(`<item/>`, 100) + `<gpx version="1.1">`
	got, err = DetectFromReader("data.xml", strings.NewReader(late))
	require.NoError(t, err)
	assert.Equal(t, FileTypeGPX, got)
}
