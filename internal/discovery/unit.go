package discovery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// An ImageUnit is a single image version found beneath a scan root.
type ImageUnit struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Path     string `json:"path"`
	Source   string `json:"source"`
	Excluded bool   `json:"excluded"`
}

// ID returns the key used for the unit in scan results.
func (u ImageUnit) ID() string {
	return fmt.Sprintf("%s:%s", u.Name, u.Version)
}

// Sort orders units by name and then by version. Versions are compared as
// semantic versions when both parse, and lexically otherwise.
func Sort(units []ImageUnit) {
	sort.SliceStable(units, func(i, j int) bool {
		if units[i].Name != units[j].Name {
			return units[i].Name < units[j].Name
		}

		if c := compareVersions(units[i].Version, units[j].Version); c != 0 {
			return c < 0
		}

		return units[i].Path < units[j].Path
	})
}

func compareVersions(a, b string) int {
	av, errA := semver.NewVersion(a)
	bv, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		if c := av.Compare(bv); c != 0 {
			return c
		}
	}

	return strings.Compare(a, b)
}
