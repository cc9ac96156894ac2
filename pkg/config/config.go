package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultConfigName is the default name of the config file
const DefaultConfigName = ".aper.yml"

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Mapping:              MappingAper,
		OutputDir:            "analyzerOutput/",
		InputFormat:          string(InputFormatAPK),
		CGAlgorithm:          string(CGAlgorithmCHA),
		CallChainThreshold:   10,
		ExpansionThreshold:   10,
		ObfuscationThreshold: 0.1,
		DumpReport:           true,
		DumpReverseReport:    true,
	}
}

// LoadFile reads option values from a YAML config file.
// If a specific configFilePath is provided, it is used and must exist.
// If configFilePath is empty, it looks for the default config file in dir.
func LoadFile(dir, configFilePath string) (Values, error) {
	var loadPath string
	explicitPathProvided := configFilePath != ""

	if explicitPathProvided {
		loadPath = configFilePath
	} else {
		loadPath = filepath.Join(dir, DefaultConfigName)
	}

	data, err := os.ReadFile(loadPath)
	if err != nil {
		if os.IsNotExist(err) {
			if explicitPathProvided {
				return nil, fmt.Errorf("config file not found at specified path: %s", loadPath)
			}
			zap.S().Debugw("no default config file found, using flags only", "path", loadPath)
			return Values{}, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", loadPath, err)
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", loadPath, err)
	}

	values := make(Values, len(raw))
	for key, node := range raw {
		if node.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("failed to parse config file %s: %q must be a scalar value", loadPath, key)
		}
		values[key] = node.Value
	}
	return values, nil
}

// Validate checks the input fields. Unknown mapping names are not an error here.
func (c *Config) Validate() error {
	var errs []error
	if c.APKFile == "" {
		errs = append(errs, errors.New("apk file is required"))
	}
	if c.SDKDir == "" {
		errs = append(errs, errors.New("missing required option: sdk-dir"))
	}
	if c.MappingDir == "" {
		errs = append(errs, errors.New("missing required option: mapping-dir"))
	}
	if c.CallChainThreshold <= 0 {
		errs = append(errs, fmt.Errorf("call-chain-threshold must be positive, got %d", c.CallChainThreshold))
	}
	if c.ExpansionThreshold <= 0 {
		errs = append(errs, fmt.Errorf("expansion-threshold must be positive, got %d", c.ExpansionThreshold))
	}
	if c.ObfuscationThreshold < 0 || c.ObfuscationThreshold > 1 {
		errs = append(errs, fmt.Errorf("obfuscation-threshold must be within [0,1], got %g", c.ObfuscationThreshold))
	}
	if c.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("timeout-seconds must not be negative, got %d", c.TimeoutSeconds))
	}
	return errors.Join(errs...)
}

// KnownMapping reports whether name is one of the supported mapping names
func KnownMapping(name string) bool {
	switch strings.ToLower(name) {
	case MappingPScout, MappingAxplorer, MappingAper:
		return true
	}
	return false
}

// ErrUnknownMapping is returned for mapping names other than pscout, axplorer and aper
var ErrUnknownMapping = errors.New("invalid mapping")

// MappingVersionDir returns the directory holding the mapping for an API level
func (c *Config) MappingVersionDir(version int) (string, error) {
	var name string
	switch strings.ToLower(c.Mapping) {
	case MappingPScout:
		name = fmt.Sprintf("API_%d", version)
	case MappingAxplorer:
		name = fmt.Sprintf("api-%d", version)
	case MappingAper:
		name = fmt.Sprintf("API%d", version)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownMapping, c.Mapping)
	}
	return filepath.Join(c.MappingDir, name), nil
}

// MappingFiles lists the *-Mappings.txt files of the resolved mapping directory
func (c *Config) MappingFiles() ([]string, error) {
	if c.derived == nil {
		return nil, ErrNotResolved
	}
	dir, err := c.MappingVersionDir(c.derived.TargetSDKVersion)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("no such mapping dir: %s", dir)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), "**/*-Mappings.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to list mapping files in %s: %w", dir, err)
	}
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		files = append(files, filepath.Join(dir, filepath.FromSlash(m)))
	}
	sort.Strings(files)
	return files, nil
}

// ParseInputFormat maps the input-format option to an InputFormat
func ParseInputFormat(s string) (InputFormat, error) {
	switch f := InputFormat(strings.ToLower(s)); f {
	case InputFormatAPK, InputFormatSrc:
		return f, nil
	}
	return "", fmt.Errorf("unsupported input format %s", s)
}

// ParseCGAlgorithm maps the cg-algorithm option to a CGAlgorithm; unknown names fall back to SPARK
func ParseCGAlgorithm(s string) CGAlgorithm {
	switch a := CGAlgorithm(strings.ToUpper(s)); a {
	case CGAlgorithmCHA, CGAlgorithmGEOM, CGAlgorithmRTA, CGAlgorithmVTA:
		return a
	}
	return CGAlgorithmSPARK
}

// Timeout returns the analysis timeout; zero means disabled
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ICCEnabled reports whether an ICC model was given
func (c *Config) ICCEnabled() bool {
	return c.ICCModelPath != ""
}

// IsExcluded checks if a class belongs to one of the excluded library packages.
// Always false unless the exclusion list was loaded.
func (c *Config) IsExcluded(className string) bool {
	if c.derived == nil {
		return false
	}
	classPath := strings.ReplaceAll(className, ".", "/")
	for _, pkg := range c.derived.ExcludedPackages {
		if matched, _ := doublestar.Match(excludeGlob(pkg), classPath); matched {
			return true
		}
	}
	return false
}

// excludeGlob turns a package pattern such as "androidx.*" into "androidx/**"
func excludeGlob(pkg string) string {
	pkg = strings.TrimSuffix(pkg, "*")
	pkg = strings.TrimSuffix(pkg, ".")
	return strings.ReplaceAll(pkg, ".", "/") + "/**"
}
