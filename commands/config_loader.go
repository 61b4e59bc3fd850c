package commands

import (
	"fmt"
	"os"

	"github.com/paketo-buildpacks/tally/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// settings are the config keys that can be overridden from the command line.
var settings = map[string]string{
	"target-type":          "target type: git, dir, iso, image, archive or file (detected when empty)",
	"name":                 "name of the scanned artifact",
	"version":              "version of the scanned artifact",
	"output-format":        "SBOM output format",
	"output-file":          "SBOM output file, relative to the output directory",
	"output-dir":           "directory for every produced file",
	"exclude-mediatypes":   "comma separated media types that prevent OCI conversion",
	"distro":               "distro passed to grype, in the form name:version",
	"merge-output-file":    "merged SBOM output file",
	"vuln-output-format":   "comma separated vulnerability report formats",
	"vuln-output-file":     "vulnerability report output file",
	"template-file":        "template used by the template vulnerability format",
	"templates-dir":        "directory holding csv, html, junit and table templates",
	"convert-dir":          "directory for converted OCI layouts",
	"extract-dir":          "directory for extracted ISOs and archives",
	"engine":               "SBOM engine: syft or builtin",
	"merge":                "merge every produced SBOM",
	"merge-hierarchical":   "merge SBOMs hierarchically",
	"vuln":                 "scan every produced SBOM for vulnerabilities",
	"scan-embedded-images": "scan the images found beneath an images directory",
}

var booleanSettings = map[string]bool{
	"merge":                true,
	"merge-hierarchical":   true,
	"vuln":                 true,
	"scan-embedded-images": true,
}

// addSettingFlags registers a flag for each of the named settings.
func addSettingFlags(cmd *cobra.Command, names ...string) {
	defaults := config.Default()

	for _, name := range names {
		if booleanSettings[name] {
			value := false
			if name == "scan-embedded-images" {
				value = defaults.ScanEmbeddedImages
			}
			cmd.Flags().Bool(name, value, settings[name])
			continue
		}

		cmd.Flags().String(name, "", settings[name])
	}
}

// changedSettings collects the setting flags given on the command line.
func changedSettings(flags *pflag.FlagSet) map[string]string {
	overrides := map[string]string{}
	flags.Visit(func(flag *pflag.Flag) {
		if _, ok := settings[flag.Name]; ok {
			overrides[flag.Name] = flag.Value.String()
		}
	})

	return overrides
}

// loadConfig builds the configuration from the defaults, then the config
// file, then the environment, then the command line.
func loadConfig(path string, overrides map[string]string) (config.Config, error) {
	cfg := config.Default()

	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to get working directory: %w", err)
		}

		path, _ = config.Find(wd)
	}

	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
	}

	cfg, err := cfg.WithEnvironment(os.LookupEnv)
	if err != nil {
		return config.Config{}, err
	}

	for key, value := range overrides {
		err = cfg.Set(key, value)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid --%s: %w", key, err)
		}
	}

	err = cfg.Validate()
	if err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}
