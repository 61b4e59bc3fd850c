package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	EngineSyft    = "syft"
	EngineBuiltin = "builtin"
)

// Publish configures the optional upload of produced artifacts to an
// S3-compatible bucket.
type Publish struct {
	Endpoint  string `toml:"endpoint" yaml:"endpoint"`
	Region    string `toml:"region" yaml:"region"`
	Bucket    string `toml:"bucket" yaml:"bucket"`
	Prefix    string `toml:"prefix" yaml:"prefix"`
	AccessKey string `toml:"access_key" yaml:"access_key"`
	SecretKey string `toml:"secret_key" yaml:"secret_key"`
	Insecure  bool   `toml:"insecure" yaml:"insecure"`
}

// Enabled reports whether a destination bucket has been configured.
func (p Publish) Enabled() bool {
	return p.Bucket != ""
}

// Config is the complete set of inputs for a single invocation. It is built
// once and passed by value to every component that needs it.
type Config struct {
	Target            string `toml:"target" yaml:"target"`
	TargetType        string `toml:"target_type" yaml:"target_type"`
	Name              string `toml:"name" yaml:"name"`
	Version           string `toml:"version" yaml:"version"`
	OutputFormat      string `toml:"output_format" yaml:"output_format"`
	OutputFile        string `toml:"output_file" yaml:"output_file"`
	OutputDir         string `toml:"output_dir" yaml:"output_dir"`
	ExcludeMediaTypes string `toml:"exclude_mediatypes" yaml:"exclude_mediatypes"`
	Distro            string `toml:"distro" yaml:"distro"`

	Merge             bool   `toml:"merge" yaml:"merge"`
	MergeHierarchical bool   `toml:"merge_hierarchical" yaml:"merge_hierarchical"`
	MergeOutputFile   string `toml:"merge_output_file" yaml:"merge_output_file"`

	Vuln             bool   `toml:"vuln" yaml:"vuln"`
	VulnOutputFormat string `toml:"vuln_output_format" yaml:"vuln_output_format"`
	VulnOutputFile   string `toml:"vuln_output_file" yaml:"vuln_output_file"`
	TemplateFile     string `toml:"template_file" yaml:"template_file"`
	TemplatesDir     string `toml:"templates_dir" yaml:"templates_dir"`

	ScanEmbeddedImages bool   `toml:"scan_embedded_images" yaml:"scan_embedded_images"`
	ConvertDir         string `toml:"convert_dir" yaml:"convert_dir"`
	ExtractDir         string `toml:"extract_dir" yaml:"extract_dir"`
	Engine             string `toml:"engine" yaml:"engine"`

	Publish Publish `toml:"publish" yaml:"publish"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Target:             "./",
		OutputFormat:       "cyclonedx-json",
		OutputDir:          "/tmp/sbom",
		VulnOutputFormat:   "json",
		TemplatesDir:       "templates",
		ScanEmbeddedImages: true,
		ConvertDir:         "/tmp/images",
		ExtractDir:         "/tmp/extracted",
		Engine:             EngineSyft,
	}
}

// Load reads a TOML or YAML configuration file on top of the defaults. The
// format is chosen by the file extension.
func Load(path string) (Config, error) {
	config := Default()

	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(content, &config)
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}

	default:
		metadata, err := toml.Decode(string(content), &config)
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}

		if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
			var keys []string
			for _, key := range undecoded {
				keys = append(keys, key.String())
			}

			return Config{}, fmt.Errorf("failed to parse config file: unknown keys %s", strings.Join(keys, ", "))
		}
	}

	return config, nil
}

// ExcludedMediaTypes splits the comma separated exclude_mediatypes value.
func (c Config) ExcludedMediaTypes() []string {
	return splitList(c.ExcludeMediaTypes)
}

// VulnFormats splits the comma separated vuln_output_format value, falling
// back to json when it is empty.
func (c Config) VulnFormats() []string {
	formats := splitList(c.VulnOutputFormat)
	if len(formats) == 0 {
		return []string{"json"}
	}

	return formats
}

// Validate checks the values that would otherwise only fail deep inside a
// run.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("invalid config: output_dir must not be empty")
	}

	switch c.Engine {
	case EngineSyft, EngineBuiltin:
	default:
		return fmt.Errorf("invalid config: unknown engine %q, please choose from the following engines: %s, %s", c.Engine, EngineSyft, EngineBuiltin)
	}

	if c.Distro != "" && !strings.Contains(c.Distro, ":") {
		return fmt.Errorf("invalid config: distro %q must be in the form name:version", c.Distro)
	}

	return nil
}

// WithEnvironment overlays values found in the environment. Both the
// INPUT_<KEY> form used by CI action runners and TALLY_<KEY> are recognized;
// TALLY_<KEY> wins when both are set.
func (c Config) WithEnvironment(lookup func(string) (string, bool)) (Config, error) {
	for _, binding := range bindings() {
		for _, prefix := range []string{"INPUT_", "TALLY_"} {
			value, ok := lookup(prefix + binding.key)
			if !ok {
				continue
			}

			err := binding.set(&c, value)
			if err != nil {
				return Config{}, fmt.Errorf("failed to parse %s%s: %w", prefix, binding.key, err)
			}
		}
	}

	return c, nil
}

// Set assigns a single value by its key. Keys are matched case-insensitively
// and may use dashes, so flag names such as merge-output-file are accepted.
func (c *Config) Set(key, value string) error {
	key = strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	for _, binding := range bindings() {
		if binding.key == key {
			return binding.set(c, value)
		}
	}

	return fmt.Errorf("unknown config key %q", key)
}

// Find returns the first tally.toml, tally.yaml or tally.yml in dir.
func Find(dir string) (string, bool) {
	for _, name := range []string{"tally.toml", "tally.yaml", "tally.yml"} {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, true
		}
	}

	return "", false
}

type binding struct {
	key string
	set func(*Config, string) error
}

func str(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, value string) error {
		*field(c) = value
		return nil
	}
}

func boolean(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, value string) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}

		*field(c) = b
		return nil
	}
}

func bindings() []binding {
	return []binding{
		{"TARGET", str(func(c *Config) *string { return &c.Target })},
		{"TARGET_TYPE", str(func(c *Config) *string { return &c.TargetType })},
		{"NAME", str(func(c *Config) *string { return &c.Name })},
		{"VERSION", str(func(c *Config) *string { return &c.Version })},
		{"OUTPUT_FORMAT", str(func(c *Config) *string { return &c.OutputFormat })},
		{"OUTPUT_FILE", str(func(c *Config) *string { return &c.OutputFile })},
		{"OUTPUT_DIR", str(func(c *Config) *string { return &c.OutputDir })},
		{"EXCLUDE_MEDIATYPES", str(func(c *Config) *string { return &c.ExcludeMediaTypes })},
		{"DISTRO", str(func(c *Config) *string { return &c.Distro })},
		{"MERGE", boolean(func(c *Config) *bool { return &c.Merge })},
		{"MERGE_HIERARCHICAL", boolean(func(c *Config) *bool { return &c.MergeHierarchical })},
		{"MERGE_OUTPUT_FILE", str(func(c *Config) *string { return &c.MergeOutputFile })},
		{"VULN", boolean(func(c *Config) *bool { return &c.Vuln })},
		{"VULN_OUTPUT_FORMAT", str(func(c *Config) *string { return &c.VulnOutputFormat })},
		{"VULN_OUTPUT_FILE", str(func(c *Config) *string { return &c.VulnOutputFile })},
		{"TEMPLATE_FILE", str(func(c *Config) *string { return &c.TemplateFile })},
		{"TEMPLATES_DIR", str(func(c *Config) *string { return &c.TemplatesDir })},
		{"SCAN_EMBEDDED_IMAGES", boolean(func(c *Config) *bool { return &c.ScanEmbeddedImages })},
		{"CONVERT_DIR", str(func(c *Config) *string { return &c.ConvertDir })},
		{"EXTRACT_DIR", str(func(c *Config) *string { return &c.ExtractDir })},
		{"ENGINE", str(func(c *Config) *string { return &c.Engine })},
		{"PUBLISH_ENDPOINT", str(func(c *Config) *string { return &c.Publish.Endpoint })},
		{"PUBLISH_REGION", str(func(c *Config) *string { return &c.Publish.Region })},
		{"PUBLISH_BUCKET", str(func(c *Config) *string { return &c.Publish.Bucket })},
		{"PUBLISH_PREFIX", str(func(c *Config) *string { return &c.Publish.Prefix })},
		{"PUBLISH_ACCESS_KEY", str(func(c *Config) *string { return &c.Publish.AccessKey })},
		{"PUBLISH_SECRET_KEY", str(func(c *Config) *string { return &c.Publish.SecretKey })},
		{"PUBLISH_INSECURE", boolean(func(c *Config) *bool { return &c.Publish.Insecure })},
	}
}

func splitList(value string) []string {
	var list []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			list = append(list, item)
		}
	}

	return list
}
