package scan

import (
	"bytes"
	"fmt"
	"os"

	"github.com/paketo-buildpacks/packit/v2/pexec"
	"github.com/paketo-buildpacks/tally/internal"
)

// A Request describes a single SBOM generation.
type Request struct {
	// Source is the scanner source with its scheme, e.g. oci-dir:/tmp/image.
	Source     string
	Name       string
	Version    string
	Format     string
	OutputFile string
}

//go:generate faux --interface Generator --output fakes/generator.go
type Generator interface {
	Generate(Request) (string, error)
}

// SyftEnvironment is appended to the process environment for every syft
// invocation.
var SyftEnvironment = []string{
	"SYFT_FORMAT_PRETTY=true",
	"SYFT_SCOPE=all-layers",
	"SYFT_FILE_CONTENT_SKIP_FILES_ABOVE_SIZE=100000000",
	"SYFT_GOLANG_SEARCH_LOCAL_MOD_CACHE_LICENSES=true",
	"SYFT_GOLANG_SEARCH_REMOTE_LICENSES=true",
	"SYFT_LOG_STRUCTURED=true",
	"SYFT_LOG_LEVEL=info",
}

// A SyftCLI generates SBOMs by running the syft executable.
type SyftCLI struct {
	syft internal.Executable
}

func NewSyftCLI(syft internal.Executable) SyftCLI {
	return SyftCLI{
		syft: syft,
	}
}

func (s SyftCLI) Generate(request Request) (string, error) {
	args := []string{"scan", request.Source}
	if request.Name != "" {
		args = append(args, "--source-name", request.Name)
	}

	if request.Version != "" {
		args = append(args, "--source-version", request.Version)
	}

	args = append(args, "-o", fmt.Sprintf("%s=%s", request.Format, request.OutputFile))

	stdout := bytes.NewBuffer(nil)
	stderr := bytes.NewBuffer(nil)
	err := s.syft.Execute(pexec.Execution{
		Args:   args,
		Env:    append(os.Environ(), SyftEnvironment...),
		Stdout: stdout,
		Stderr: stderr,
	})
	if err != nil {
		if internal.IsMissingExecutable(err) {
			return "", internal.MissingDependencyError("syft")
		}

		return stdout.String(), fmt.Errorf("syft failed: %w: %s", err, stderr)
	}

	return stdout.String(), nil
}
