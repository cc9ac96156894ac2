package config

// Config represents the analyzer configuration for one run.
// Input fields are bound to command-line flags; the yaml keys match the flag names.
// Derived fields are only reachable through accessors and are set once by Resolve.
type Config struct {
	APKFile      string `yaml:"apk-file"`
	SDKDir       string `yaml:"sdk-dir"`
	Mapping      string `yaml:"mapping"`
	MappingDir   string `yaml:"mapping-dir"`
	OutputDir    string `yaml:"output-dir"`
	ICCModelPath string `yaml:"icc-model-path,omitempty"`
	InputFormat  string `yaml:"input-format"`
	CGAlgorithm  string `yaml:"cg-algorithm"`

	CallChainThreshold   int     `yaml:"call-chain-threshold"`
	ExpansionThreshold   int     `yaml:"expansion-threshold"`
	ObfuscationThreshold float64 `yaml:"obfuscation-threshold"`
	TimeoutSeconds       int64   `yaml:"timeout-seconds"`

	DumpReport                bool `yaml:"dump-report"`
	DumpReverseReport         bool `yaml:"dump-reverse-report"`
	IncludeExternalStorageDir bool `yaml:"include-external-storage-dir"`
	CompleteOnly              bool `yaml:"complete-only"`
	ExcludeLibs               bool `yaml:"exclude-libs"`
	DisableObfuscationScan    bool `yaml:"disable-obfuscation-scan"`
	EmpiricalCollectMode      bool `yaml:"empirical-collect-mode"`
	MCGOnlyMode               bool `yaml:"mcg-only-mode"`
	FilterTryCatch            bool `yaml:"filter-trycatch"`

	derived *Derived
}

// Derived holds the fields computed from the inspected APK
type Derived struct {
	TargetSDKVersion     int      `yaml:"target-sdk-version"`
	PackageName          string   `yaml:"package-name"`
	APKOutputDir         string   `yaml:"apk-output-dir"`
	VersionDangerousFile string   `yaml:"version-dangerous-file"`
	VersionSDKFile       string   `yaml:"version-sdk-file"`
	AndroidCallbacksFile string   `yaml:"android-callbacks-file"`
	MappingVersionDir    string   `yaml:"mapping-version-dir,omitempty"`
	ExcludedPackages     []string `yaml:"excluded-packages,omitempty"`
}

// Snapshot is the serializable view of a Config, used for --print-config
type Snapshot struct {
	Config  `yaml:",inline"`
	Derived *Derived `yaml:"derived,omitempty"`
}

// Values holds raw option values keyed by flag name, as read from a config file
type Values map[string]string

// Lookup returns the raw value for a flag name
func (v Values) Lookup(name string) (string, bool) {
	val, ok := v[name]
	return val, ok
}

// Mapping names understood by MappingVersionDir
const (
	MappingPScout   = "pscout"
	MappingAxplorer = "axplorer"
	MappingAper     = "aper"
)

// InputFormat is the kind of artifact handed to the analyzer
type InputFormat string

const (
	InputFormatAPK InputFormat = "apk"
	InputFormatSrc InputFormat = "src"
)

// CGAlgorithm is the call graph construction algorithm
type CGAlgorithm string

const (
	CGAlgorithmCHA   CGAlgorithm = "CHA"
	CGAlgorithmGEOM  CGAlgorithm = "GEOM"
	CGAlgorithmRTA   CGAlgorithm = "RTA"
	CGAlgorithmVTA   CGAlgorithm = "VTA"
	CGAlgorithmSPARK CGAlgorithm = "SPARK"
)
