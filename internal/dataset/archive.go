package dataset

import (
	"bytes"
	"fmt"
	"time"

	"github.com/KaramelBytes/scoretune/internal/utils"
	"github.com/klauspost/compress/zip"
)

// WriteCSVFile writes the frame to path atomically.
func (f *Frame) WriteCSVFile(path string) error {
	var buf bytes.Buffer
	if err := f.WriteCSV(&buf); err != nil {
		return err
	}
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteZip stores the frame as a single deflated CSV entry named archiveName
// inside the zip file at path.
func (f *Frame) WriteZip(path, archiveName string) error {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     archiveName,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("create zip entry: %w", err)
	}
	if err := f.WriteCSV(w); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadZip reads the CSV entry named archiveName from the zip file at path.
func ReadZip(path, archiveName string) (*Frame, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()
	for _, zf := range zr.File {
		if zf.Name != archiveName {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", archiveName, err)
		}
		defer rc.Close()
		return ReadCSV(rc)
	}
	return nil, fmt.Errorf("%s: no entry %q", path, archiveName)
}
