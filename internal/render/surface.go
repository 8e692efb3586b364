package render

import (
	"fmt"
	"strings"

	apperrors "github.com/utafrali/promarket/pkg/errors"
)

// Surface identifies a display surface. Values combine as a bit set to
// describe which surfaces a page contains.
type Surface uint8

const (
	Drawer Surface = 1 << iota
	Page
	Checkout
	Badge

	AllSurfaces = Drawer | Page | Checkout | Badge
)

var surfaceNames = []struct {
	s    Surface
	name string
}{
	{Drawer, "drawer"},
	{Page, "page"},
	{Checkout, "checkout"},
	{Badge, "badge"},
}

// Has reports whether every surface in other is present in s.
func (s Surface) Has(other Surface) bool {
	return other != 0 && s&other == other
}

func (s Surface) String() string {
	var names []string
	for _, sn := range surfaceNames {
		if s.Has(sn.s) {
			names = append(names, sn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// ParseSurface parses a single surface name.
func ParseSurface(name string) (Surface, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, sn := range surfaceNames {
		if sn.name == name {
			return sn.s, nil
		}
	}
	return 0, apperrors.InvalidInput(fmt.Sprintf("unknown surface %q", name))
}

// ParseSurfaces parses a comma-separated surface list. An empty list selects
// every surface.
func ParseSurfaces(csv string) (Surface, error) {
	if strings.TrimSpace(csv) == "" {
		return AllSurfaces, nil
	}
	var set Surface
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		s, err := ParseSurface(part)
		if err != nil {
			return 0, err
		}
		set |= s
	}
	return set, nil
}
