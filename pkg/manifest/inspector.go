package manifest

import (
	"bufio"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultAaptPath is the aapt binary looked up in PATH when none is configured
const DefaultAaptPath = "aapt"

// Inspector supplies the two facts about the input artifact the configuration depends on
type Inspector interface {
	TargetSDKVersion() (int, error)
	PackageName() (string, error)
}

// Badging holds the parsed output of `aapt dump badging`
type Badging struct {
	PackageName      string
	TargetSDKVersion int // -1 when the manifest does not declare one
	MinSDKVersion    int // -1 when the manifest does not declare one
}

// AaptInspector reads manifest facts by running `aapt dump badging` on the APK.
// The tool runs at most once; its result is cached.
type AaptInspector struct {
	aaptPath string
	apkPath  string

	badging *Badging
	err     error
	run     func(name string, args ...string) ([]byte, error)
}

// NewAaptInspector creates an inspector for apkPath using the given aapt binary
func NewAaptInspector(aaptPath, apkPath string) *AaptInspector {
	if aaptPath == "" {
		aaptPath = DefaultAaptPath
	}
	return &AaptInspector{
		aaptPath: aaptPath,
		apkPath:  apkPath,
		run: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).CombinedOutput()
		},
	}
}

// TargetSDKVersion returns the APK's target SDK version
func (i *AaptInspector) TargetSDKVersion() (int, error) {
	b, err := i.inspect()
	if err != nil {
		return 0, err
	}
	return b.TargetSDKVersion, nil
}

// PackageName returns the APK's package name
func (i *AaptInspector) PackageName() (string, error) {
	b, err := i.inspect()
	if err != nil {
		return "", err
	}
	return b.PackageName, nil
}

func (i *AaptInspector) inspect() (*Badging, error) {
	if i.badging != nil || i.err != nil {
		return i.badging, i.err
	}

	zap.S().Debugw("inspecting apk manifest", "aapt", i.aaptPath, "apk", i.apkPath)
	out, err := i.run(i.aaptPath, "dump", "badging", i.apkPath)
	if err != nil {
		i.err = fmt.Errorf("aapt dump badging failed: %w\n%s", err, string(out))
		return nil, i.err
	}

	i.badging, i.err = ParseBadging(string(out))
	if i.err == nil {
		zap.S().Infow("inspected apk manifest",
			"package", i.badging.PackageName,
			"target_sdk", i.badging.TargetSDKVersion,
			"min_sdk", i.badging.MinSDKVersion)
	}
	return i.badging, i.err
}

var (
	packageRe   = regexp.MustCompile(`^package:.*?\bname='([^']*)'`)
	targetSdkRe = regexp.MustCompile(`^targetSdkVersion:'(-?\d+)'`)
	minSdkRe    = regexp.MustCompile(`^(?:minSdkVersion|sdkVersion):'(-?\d+)'`)
)

// ParseBadging extracts the package name and SDK versions from `aapt dump badging` output
func ParseBadging(output string) (*Badging, error) {
	b := &Badging{TargetSDKVersion: -1, MinSDKVersion: -1}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if m := packageRe.FindStringSubmatch(line); m != nil && b.PackageName == "" {
			b.PackageName = m[1]
			continue
		}
		if m := targetSdkRe.FindStringSubmatch(line); m != nil {
			v, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("invalid targetSdkVersion %q: %w", m[1], err)
			}
			b.TargetSDKVersion = v
			continue
		}
		if m := minSdkRe.FindStringSubmatch(line); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				b.MinSDKVersion = v
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read aapt output: %w", err)
	}

	if b.PackageName == "" {
		return nil, fmt.Errorf("no package name found in aapt output")
	}
	return b, nil
}
