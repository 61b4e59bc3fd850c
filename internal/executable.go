package internal

import (
	"errors"
	"os/exec"

	"github.com/paketo-buildpacks/packit/v2/pexec"
)

//go:generate faux --interface Executable --output fakes/executable.go
type Executable interface {
	Execute(pexec.Execution) error
}

// IsMissingExecutable reports whether err was caused by the executable not
// being found on the $PATH.
func IsMissingExecutable(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}
