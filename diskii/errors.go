package diskii

import "fmt"

// InvalidDriveNumber is returned by any Card method addressing a drive
// index outside {0, 1}.
type InvalidDriveNumber struct {
	Drive int
}

func (e InvalidDriveNumber) Error() string {
	return fmt.Sprintf("diskii: invalid drive number %d (want 0 or 1)", e.Drive)
}

// InvalidDiskSize is returned by InsertDisk when data's length doesn't
// match the size a DSK/PO/NIB image of the requested format must be.
type InvalidDiskSize struct {
	Got, Want int
}

func (e InvalidDiskSize) Error() string {
	return fmt.Sprintf("diskii: invalid disk image size %d bytes (want %d)", e.Got, e.Want)
}

// NoDiskLoaded is returned by Export when the target drive has nothing
// mounted.
type NoDiskLoaded struct {
	Drive int
}

func (e NoDiskLoaded) Error() string {
	return fmt.Sprintf("diskii: no disk loaded in drive %d", e.Drive)
}
