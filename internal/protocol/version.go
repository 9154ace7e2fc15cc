package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedVersion is returned by ParseVersion for anything that is not
// three dot-separated non-negative integers.
var ErrMalformedVersion = errors.New("malformed version")

// Version is a MAJOR.MINOR.PATCH protocol version.
type Version struct {
	Major uint32
	Minor uint32
	Patch uint32
}

// ParseVersion parses a dotted version string such as "1.2.3".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q", ErrMalformedVersion, s)
	}

	var nums [3]uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q", ErrMalformedVersion, s)
		}
		nums[i] = uint32(n)
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParseVersion is like ParseVersion but panics on error. It is meant for
// compile-time constants.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compatibility is the outcome of CompareVersions.
type Compatibility int

const (
	Compatible Compatibility = iota
	Incompatible
)

func (c Compatibility) String() string {
	if c == Compatible {
		return "compatible"
	}
	return "incompatible"
}

// CompareVersions decides whether a client may talk to a server. Major
// versions must match and the server's minor version must be at least the
// client's. Patch versions are never compared.
func CompareVersions(server, client Version) Compatibility {
	if server.Major != client.Major {
		return Incompatible
	}
	if server.Minor < client.Minor {
		return Incompatible
	}
	return Compatible
}
