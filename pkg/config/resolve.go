package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/cosmos/aper/pkg/manifest"
	"github.com/cosmos/aper/pkg/resources"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyResolved is returned when Resolve runs on a resolved config
	ErrAlreadyResolved = errors.New("configuration already resolved")
	// ErrNotResolved is returned by accessors that need derived fields
	ErrNotResolved = errors.New("configuration not resolved")
)

// ResolveWith queries the inspector once for each fact and resolves cfg with them
func ResolveWith(cfg *Config, inspector manifest.Inspector, store *resources.Store) error {
	version, err := inspector.TargetSDKVersion()
	if err != nil {
		return fmt.Errorf("failed to read target SDK version: %w", err)
	}
	pkg, err := inspector.PackageName()
	if err != nil {
		return fmt.Errorf("failed to read package name: %w", err)
	}
	return cfg.Resolve(version, pkg, store)
}

// Resolve computes the derived fields from the APK's target SDK version and package name,
// materializing the version specific reference files through store.
// Nothing is assigned unless every step succeeds.
func (c *Config) Resolve(targetSDKVersion int, packageName string, store *resources.Store) error {
	if c.derived != nil {
		return ErrAlreadyResolved
	}
	if err := c.Validate(); err != nil {
		return err
	}

	d := &Derived{
		TargetSDKVersion: targetSDKVersion,
		PackageName:      packageName,
		APKOutputDir:     filepath.Join(c.OutputDir, packageName),
		VersionSDKFile:   filepath.Join(c.SDKDir, "android-"+strconv.Itoa(targetSDKVersion), "android.jar"),
	}

	var err error
	d.VersionDangerousFile, err = store.CopyToTemp(resources.DangerousName(targetSDKVersion))
	if err != nil {
		return fmt.Errorf("failed to materialize dangerous permissions for API %d: %w", targetSDKVersion, err)
	}

	d.AndroidCallbacksFile, err = store.CopyToTemp(resources.AndroidCallbacksName)
	if err != nil {
		return fmt.Errorf("failed to materialize android callbacks: %w", err)
	}

	if c.ExcludeLibs {
		d.ExcludedPackages, err = store.ReadLines(resources.ExcludeListName)
		if err != nil {
			return fmt.Errorf("failed to load excluded packages: %w", err)
		}
		if len(d.ExcludedPackages) == 0 {
			return fmt.Errorf("failed to load excluded packages: %s is empty", resources.ExcludeListName)
		}
	}

	if dir, err := c.MappingVersionDir(targetSDKVersion); err == nil {
		d.MappingVersionDir = dir
	} else {
		zap.S().Warnw("mapping directory not derived", "mapping", c.Mapping, "error", err)
	}

	c.derived = d
	zap.S().Infow("configuration resolved",
		"package", packageName,
		"target_sdk", targetSDKVersion,
		"apk_output_dir", d.APKOutputDir,
		"sdk_jar", d.VersionSDKFile,
		"excluded_packages", len(d.ExcludedPackages))
	return nil
}

// Resolved reports whether the derived fields are available
func (c *Config) Resolved() bool {
	return c.derived != nil
}

// TargetSDKVersion returns the inspected target SDK version
func (c *Config) TargetSDKVersion() int {
	if c.derived == nil {
		return 0
	}
	return c.derived.TargetSDKVersion
}

// PackageName returns the inspected package name
func (c *Config) PackageName() string {
	if c.derived == nil {
		return ""
	}
	return c.derived.PackageName
}

// APKOutputDir returns the per-package output directory; it is not created here
func (c *Config) APKOutputDir() string {
	if c.derived == nil {
		return ""
	}
	return c.derived.APKOutputDir
}

// VersionDangerousFile returns the path of the materialized dangerous permission list
func (c *Config) VersionDangerousFile() string {
	if c.derived == nil {
		return ""
	}
	return c.derived.VersionDangerousFile
}

// VersionSDKFile returns the android.jar path for the target version; existence is not checked
func (c *Config) VersionSDKFile() string {
	if c.derived == nil {
		return ""
	}
	return c.derived.VersionSDKFile
}

// AndroidCallbacksFile returns the path of the materialized callback list
func (c *Config) AndroidCallbacksFile() string {
	if c.derived == nil {
		return ""
	}
	return c.derived.AndroidCallbacksFile
}

// ExcludedPackages returns the excluded package patterns, or nil when exclude-libs is off
func (c *Config) ExcludedPackages() []string {
	if c.derived == nil || c.derived.ExcludedPackages == nil {
		return nil
	}
	return append([]string(nil), c.derived.ExcludedPackages...)
}

// Snapshot returns a copy of the configuration suitable for serialization
func (c *Config) Snapshot() Snapshot {
	s := Snapshot{Config: *c}
	if c.derived != nil {
		d := *c.derived
		d.ExcludedPackages = c.ExcludedPackages()
		s.Derived = &d
	}
	return s
}
