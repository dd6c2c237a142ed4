package machine

import "fmt"

// InvalidROMSize is returned by LoadROM when data's length does not match
// any of the system ROM package sizes spec.md §6 documents (2, 12, 16, 20,
// or 32 KiB).
type InvalidROMSize struct {
	Got int
}

func (e InvalidROMSize) Error() string {
	return fmt.Sprintf("machine: invalid ROM size %d bytes (want 2048, 12288, 16384, 20480, or 32768)", e.Got)
}

// InvalidDiskROM is returned by LoadDiskIIROM when data is not exactly 256
// bytes or does not begin with the $A2 $20 (LDX #$20) signature.
type InvalidDiskROM struct {
	Reason string
}

func (e InvalidDiskROM) Error() string {
	return fmt.Sprintf("machine: invalid Disk II boot ROM: %s", e.Reason)
}

// IncompatibleSaveState is returned by LoadState when the snapshot's
// version tag does not match the version this build of machine produces.
type IncompatibleSaveState struct {
	Got, Want int
}

func (e IncompatibleSaveState) Error() string {
	return fmt.Sprintf("machine: incompatible save state version %d (want %d)", e.Got, e.Want)
}
