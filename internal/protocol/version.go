package protocol

import (
	"fmt"
	"strconv"
)

// ProtocolVersion identifies a wire-format revision. It selects packet id
// catalogs and the chunk container layout and stays fixed for the lifetime
// of a connection.
type ProtocolVersion int32

const (
	V1_21_1  ProtocolVersion = 767
	V1_21_11 ProtocolVersion = 774

	CurrentProtocolVersion = V1_21_11
)

var versionNames = map[ProtocolVersion]string{
	V1_21_1:  "1.21.1",
	V1_21_11: "1.21.11",
}

func (v ProtocolVersion) String() string {
	if name, ok := versionNames[v]; ok {
		return name
	}
	return "protocol " + strconv.Itoa(int(v))
}

func (v ProtocolVersion) Supported() bool {
	_, ok := versionNames[v]
	return ok
}

// Check returns ErrUnsupportedVersion for versions without a catalog.
func (v ProtocolVersion) Check() error {
	if !v.Supported() {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, int32(v))
	}
	return nil
}

// ContainerLengthPrefixed reports whether paletted containers carry a VarInt
// count of longs before the packed array.
func (v ProtocolVersion) ContainerLengthPrefixed() bool {
	return v < V1_21_11
}

// NBTHeightmaps reports whether heightmaps travel as an NBT compound instead
// of a typed list.
func (v ProtocolVersion) NBTHeightmaps() bool {
	return v < V1_21_11
}

func (v ProtocolVersion) HasSeaLevel() bool {
	return v >= V1_21_11
}

func (v ProtocolVersion) HasParticleStatus() bool {
	return v >= V1_21_11
}

// StrictLoginErrors reports whether LoginSuccess ends with the
// strict-error-handling flag.
func (v ProtocolVersion) StrictLoginErrors() bool {
	return v < V1_21_11
}

func (v ProtocolVersion) HasPlayerLoaded() bool {
	return v >= V1_21_11
}

// SupportedVersions lists every version with a packet catalog, oldest first.
func SupportedVersions() []ProtocolVersion {
	return []ProtocolVersion{V1_21_1, V1_21_11}
}
