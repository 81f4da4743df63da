// Package arduboy reads .arduboy game packages: zip archives with an
// info.json manifest naming the Intel HEX image to flash.
package arduboy

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
)

// ManifestName is the manifest file inside a package.
const ManifestName = "info.json"

// maxEntrySize bounds how much is read from a single archive entry.
const maxEntrySize = 4 << 20

// Binary is one flashable image listed in the manifest.
type Binary struct {
	Title    string `json:"title"`
	Filename string `json:"filename"`
	Device   string `json:"device"`
}

// Info is the package manifest.
type Info struct {
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Binaries    []Binary `json:"binaries"`
}

// ExtractHex returns the hex image of the first binary in the package at
// path.
//
// Example:
//
//	hex, err := arduboy.ExtractHex("game.arduboy")
//	img, err := ihex.Decode(bytes.NewReader(hex))
func ExtractHex(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open package: %w", err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat package: %w", err)
	}
	return ExtractHexFromReader(f, st.Size())
}

// ExtractHexFromReader is ExtractHex for an archive held in r.
func ExtractHexFromReader(r io.ReaderAt, size int64) ([]byte, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("invalid package: %w", err)
	}

	info, err := readInfo(zr)
	if err != nil {
		return nil, err
	}
	if len(info.Binaries) == 0 {
		return nil, fmt.Errorf("%s lists no binaries", ManifestName)
	}
	name := info.Binaries[0].Filename
	if name == "" {
		return nil, fmt.Errorf("%s: first binary has no filename", ManifestName)
	}

	data, err := readEntry(zr, name)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ReadInfo returns the manifest of the package held in r.
func ReadInfo(r io.ReaderAt, size int64) (*Info, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("invalid package: %w", err)
	}
	return readInfo(zr)
}

func readInfo(zr *zip.Reader) (*Info, error) {
	data, err := readEntry(zr, ManifestName)
	if err != nil {
		return nil, err
	}
	// some packagers write a UTF-8 byte order mark
	data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ManifestName, err)
	}
	return &info, nil
}

// readEntry reads the named entry, comparing names without directories so
// packages zipped with a top-level folder still work.
func readEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name && path.Base(f.Name) != path.Base(name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer func() { _ = rc.Close() }()

		data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		if len(data) > maxEntrySize {
			return nil, fmt.Errorf("%s is larger than %d bytes", f.Name, maxEntrySize)
		}
		return data, nil
	}
	return nil, fmt.Errorf("package has no %s", name)
}
