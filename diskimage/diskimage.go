// Package diskimage loads Apple II floppy images from a file, detecting
// DSK/PO/NIB format and transparently unwrapping a handful of common
// archive containers, mirroring the teacher pack's archive-transparent
// ROM loader.
package diskimage

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/klauspost/compress/gzip"

	"github.com/sixfivezero/apple2core/diskii"
)

var (
	magicZIP  = []byte{0x50, 0x4B, 0x03, 0x04}
	magic7z   = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip = []byte{0x1F, 0x8B}
)

type archiveFormat int

const (
	archiveNone archiveFormat = iota
	archiveZIP
	archive7z
	archiveGzip
)

// Image is a loaded disk image ready to hand to diskii.Card.InsertDisk.
type Image struct {
	Data   []uint8
	Format diskii.Format
	Name   string // the member filename inside an archive, else the base path.
}

// InvalidDiskSize mirrors diskii.InvalidDiskSize so callers that only
// import diskimage still get a typed error without pulling in diskii's
// full surface.
type InvalidDiskSize struct {
	Got, Want int
}

func (e InvalidDiskSize) Error() string {
	return fmt.Sprintf("diskimage: invalid disk image size %d bytes (want %d)", e.Got, e.Want)
}

// UnsupportedFormat is returned when neither magic bytes nor extension
// identify a usable archive or disk-image format.
type UnsupportedFormat struct {
	Path string
}

func (e UnsupportedFormat) Error() string {
	return fmt.Sprintf("diskimage: unsupported file format: %s", e.Path)
}

// NoDiskMemberFound is returned when an archive was opened successfully
// but contained no member recognizable as a disk image.
type NoDiskMemberFound struct {
	Path string
}

func (e NoDiskMemberFound) Error() string {
	return fmt.Sprintf("diskimage: no .dsk/.po/.nib member found in %s", e.Path)
}

// Load reads path, detects DSK/PO/NIB and any wrapping archive, and
// returns the decoded image ready for diskii.Card.InsertDisk.
func Load(path string) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("diskimage: open %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, 16)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return Image{}, fmt.Errorf("diskimage: read header of %s: %w", path, err)
	}
	header = header[:n]

	switch detectArchive(header, path) {
	case archiveZIP:
		return loadFromZIP(path)
	case archive7z:
		return loadFrom7z(path)
	case archiveGzip:
		return loadFromGzip(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return Image{}, fmt.Errorf("diskimage: read %s: %w", path, err)
		}
		format, ok := detectDiskFormat(len(data), path)
		if !ok {
			return Image{}, UnsupportedFormat{Path: path}
		}
		return Image{Data: data, Format: format, Name: filepath.Base(path)}, nil
	}
}

func detectArchive(header []byte, path string) archiveFormat {
	if bytes.HasPrefix(header, magicZIP) {
		return archiveZIP
	}
	if bytes.HasPrefix(header, magic7z) {
		return archive7z
	}
	if bytes.HasPrefix(header, magicGzip) {
		return archiveGzip
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return archiveZIP
	case ".7z":
		return archive7z
	case ".gz":
		return archiveGzip
	}
	return archiveNone
}

// detectDiskFormat classifies a member by extension first (DSK and PO
// share a size, so extension disambiguates DOS-order vs ProDOS-order
// sector interleave), falling back to size alone.
func detectDiskFormat(size int, name string) (diskii.Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".po":
		if size == diskii.DSKSize {
			return diskii.FormatPO, true
		}
	case ".dsk", ".do":
		if size == diskii.DSKSize {
			return diskii.FormatDSK, true
		}
	case ".nib":
		if size == diskii.NibSize {
			return diskii.FormatNIB, true
		}
	}
	switch size {
	case diskii.DSKSize:
		return diskii.FormatDSK, true
	case diskii.NibSize:
		return diskii.FormatNIB, true
	}
	return diskii.FormatDSK, false
}

func isDiskMember(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".dsk", ".do", ".po", ".nib":
		return true
	}
	return false
}

func loadFromZIP(path string) (Image, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return Image{}, fmt.Errorf("diskimage: open zip %s: %w", path, err)
	}
	defer r.Close()

	for _, member := range r.File {
		if member.FileInfo().IsDir() || !isDiskMember(member.Name) {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			return Image{}, fmt.Errorf("diskimage: open zip member %s: %w", member.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return Image{}, fmt.Errorf("diskimage: read zip member %s: %w", member.Name, err)
		}
		format, ok := detectDiskFormat(len(data), member.Name)
		if !ok {
			return Image{}, InvalidDiskSize{Got: len(data), Want: diskii.DSKSize}
		}
		return Image{Data: data, Format: format, Name: member.Name}, nil
	}
	return Image{}, NoDiskMemberFound{Path: path}
}

func loadFrom7z(path string) (Image, error) {
	r, err := sevenzip.OpenReader(path)
	if err != nil {
		return Image{}, fmt.Errorf("diskimage: open 7z %s: %w", path, err)
	}
	defer r.Close()

	for _, member := range r.File {
		if member.FileInfo().IsDir() || !isDiskMember(member.Name) {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			return Image{}, fmt.Errorf("diskimage: open 7z member %s: %w", member.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return Image{}, fmt.Errorf("diskimage: read 7z member %s: %w", member.Name, err)
		}
		format, ok := detectDiskFormat(len(data), member.Name)
		if !ok {
			return Image{}, InvalidDiskSize{Got: len(data), Want: diskii.DSKSize}
		}
		return Image{Data: data, Format: format, Name: member.Name}, nil
	}
	return Image{}, NoDiskMemberFound{Path: path}
}

func loadFromGzip(path string) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("diskimage: open %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return Image{}, fmt.Errorf("diskimage: open gzip stream %s: %w", path, err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return Image{}, fmt.Errorf("diskimage: decompress %s: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), ".gz")
	format, ok := detectDiskFormat(len(data), name)
	if !ok {
		return Image{}, UnsupportedFormat{Path: path}
	}
	return Image{Data: data, Format: format, Name: name}, nil
}
