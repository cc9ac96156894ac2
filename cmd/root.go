package cmd

import (
	"errors"
	"fmt"

	"github.com/cosmos/aper/pkg/config"
	"github.com/cosmos/aper/pkg/manifest"
	"github.com/cosmos/aper/pkg/resources"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// options holds flags that steer the command itself rather than the analysis
type options struct {
	cfgFile     string
	logLevel    string
	logFormat   string
	aaptPath    string
	tempDir     string
	cleanupTemp bool
	printConfig bool
}

// deps are the collaborators swapped out in tests
type deps struct {
	newInspector func(aaptPath, apkPath string) manifest.Inspector
}

func defaultDeps() deps {
	return deps{
		newInspector: func(aaptPath, apkPath string) manifest.Inspector {
			return manifest.NewAaptInspector(aaptPath, apkPath)
		},
	}
}

func newRootCmd(cfg *config.Config, d deps) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "aper [flags] <apk-file>",
		Short: "Analyze Android permission management in an APK",
		Long: `aper inspects an APK, resolves the SDK and permission-mapping files
matching its target SDK version, and prepares the reference files the
permission analyzer reads. Options may also come from a .aper.yml file
or from APER_* environment variables; command-line flags win.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return &ArgumentError{Err: fmt.Errorf("accepts exactly 1 arg (apk file), received %d", len(args))}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if err := applyValues(flags, "environment", envLookup()); err != nil {
				return &ArgumentError{Err: err}
			}

			// Build a logger early so config file errors are reported
			if err := setupLogger(opts.logLevel, opts.logFormat); err != nil {
				return err
			}

			values, err := config.LoadFile(".", opts.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			_, nestedConfig := values["config"]
			delete(values, "config")
			if err := applyValues(flags, "config file", values.Lookup); err != nil {
				return &ArgumentError{Err: err}
			}

			// The config file may have changed log-level or log-format
			if err := setupLogger(opts.logLevel, opts.logFormat); err != nil {
				return err
			}
			if nestedConfig {
				zap.S().Warnw("ignoring config key inside a config file")
			}
			for key := range values {
				if flags.Lookup(key) == nil {
					zap.S().Warnw("ignoring unknown config file key", "key", key)
				}
			}

			cfg.APKFile = args[0]
			if err := cfg.Validate(); err != nil {
				return &ArgumentError{Err: err}
			}
			if !config.KnownMapping(cfg.Mapping) {
				zap.S().Warnw("unrecognized mapping, the analyzer will reject it", "mapping", cfg.Mapping)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg, opts, d)
		},
	}

	// Command flags
	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is "+config.DefaultConfigName+")")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format (text, json)")
	cmd.Flags().StringVar(&opts.aaptPath, "aapt", manifest.DefaultAaptPath, "Path to the aapt binary used to inspect the APK")
	cmd.Flags().StringVar(&opts.tempDir, "temp-dir", "", "Directory for extracted reference files (default is the OS temp dir)")
	cmd.Flags().BoolVar(&opts.cleanupTemp, "cleanup-temp", false, "Remove extracted reference files when the command exits")
	cmd.Flags().BoolVar(&opts.printConfig, "print-config", false, "Print the resolved configuration as YAML")

	// Inputs
	cmd.Flags().StringVarP(&cfg.SDKDir, "sdk-dir", "s", cfg.SDKDir, "Directory of android-<version>/android.jar platforms (required)")
	cmd.Flags().StringVarP(&cfg.Mapping, "mapping", "m", cfg.Mapping, "Permission mapping: pscout, axplorer or aper")
	cmd.Flags().StringVarP(&cfg.MappingDir, "mapping-dir", "M", cfg.MappingDir, "Mapping directory, without the version part (required)")
	cmd.Flags().StringVarP(&cfg.OutputDir, "output-dir", "o", cfg.OutputDir, "Base output directory of the analyzer")
	cmd.Flags().StringVar(&cfg.ICCModelPath, "icc-model-path", cfg.ICCModelPath, "IC3 model path; ICC is disabled without it")
	cmd.Flags().StringVarP(&cfg.InputFormat, "input-format", "i", cfg.InputFormat, "Input format (apk, src)")
	cmd.Flags().StringVarP(&cfg.CGAlgorithm, "cg-algorithm", "g", cfg.CGAlgorithm, "Call graph algorithm (CHA, GEOM, RTA, VTA, SPARK)")

	// Thresholds
	cmd.Flags().IntVar(&cfg.CallChainThreshold, "call-chain-threshold", cfg.CallChainThreshold, "Maximum length of a call chain")
	cmd.Flags().IntVar(&cfg.ExpansionThreshold, "expansion-threshold", cfg.ExpansionThreshold, "Maximum length of a trace expansion")
	cmd.Flags().Float64Var(&cfg.ObfuscationThreshold, "obfuscation-threshold", cfg.ObfuscationThreshold, "Threshold in [0,1] to judge obfuscation")
	cmd.Flags().Int64VarP(&cfg.TimeoutSeconds, "timeout-seconds", "t", cfg.TimeoutSeconds, "Analysis timeout in seconds (0 disables)")

	// Behavior
	cmd.Flags().BoolVar(&cfg.DumpReport, "dump-report", cfg.DumpReport, "Dump report files")
	cmd.Flags().BoolVar(&cfg.DumpReverseReport, "dump-reverse-report", cfg.DumpReverseReport, "Dump reverse report files")
	cmd.Flags().BoolVar(&cfg.IncludeExternalStorageDir, "include-external-storage-dir", cfg.IncludeExternalStorageDir, "Keep getExternalStorageDirectory in the mapping")
	cmd.Flags().BoolVar(&cfg.CompleteOnly, "complete-only", cfg.CompleteOnly, "Only analyze when permission management is complete")
	cmd.Flags().BoolVar(&cfg.ExcludeLibs, "exclude-libs", cfg.ExcludeLibs, "Exclude third-party libraries")
	cmd.Flags().BoolVar(&cfg.DisableObfuscationScan, "disable-obfuscation-scan", cfg.DisableObfuscationScan, "Analyze obfuscated APKs without scanning for obfuscation")
	cmd.Flags().BoolVar(&cfg.EmpiricalCollectMode, "empirical-collect-mode", cfg.EmpiricalCollectMode, "Run for empirical study data collection")
	cmd.Flags().BoolVar(&cfg.MCGOnlyMode, "mcg-only-mode", cfg.MCGOnlyMode, "Only dump the module call graph")
	cmd.Flags().BoolVar(&cfg.FilterTryCatch, "filter-trycatch", cfg.FilterTryCatch, "Filter call chains surrounded by try-catch")

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return &ArgumentError{Err: err}
	})

	return cmd
}

func setupLogger(logLevel, logFormat string) error {
	var level zapcore.Level
	if err := level.Set(logLevel); err != nil {
		return &ArgumentError{Err: fmt.Errorf("invalid log level: %w", err)}
	}

	var zcfg zap.Config
	if logFormat == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		// More human-readable time format for text logs
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	}

	zcfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return nil
}

func run(cmd *cobra.Command, cfg *config.Config, opts *options, d deps) error {
	store := resources.NewStore(resources.WithDir(opts.tempDir))
	if opts.cleanupTemp {
		defer func() {
			if err := store.Cleanup(); err != nil {
				zap.S().Warnw("failed to remove extracted reference files", "error", err)
			}
		}()
	}

	inspector := d.newInspector(opts.aaptPath, cfg.APKFile)
	if err := config.ResolveWith(cfg, inspector, store); err != nil {
		return fmt.Errorf("failed to resolve configuration: %w", err)
	}

	if opts.printConfig {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg.Snapshot()); err != nil {
			return fmt.Errorf("failed to print configuration: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to print configuration: %w", err)
		}
	}

	zap.S().Infow("configuration ready",
		"apk", cfg.APKFile,
		"mapping", cfg.Mapping,
		"cg_algorithm", config.ParseCGAlgorithm(cfg.CGAlgorithm),
		"icc", cfg.ICCEnabled(),
		"timeout", cfg.Timeout())
	return nil
}

// Execute runs the root command against the process-wide configuration.
// Failures and shown help come back as an *ExitError carrying the exit code.
func Execute() error {
	return execute(newRootCmd(config.Global(), defaultDeps()))
}

func execute(root *cobra.Command) error {
	err := root.Execute()
	if err == nil {
		if help := root.Flags().Lookup("help"); help != nil && help.Changed {
			return &ExitError{Code: ExitCodeHelp, Err: pflag.ErrHelp}
		}
		return nil
	}

	var argErr *ArgumentError
	if errors.As(err, &argErr) {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n\n%s", err, root.UsageString())
		return &ExitError{Code: ExitCodeUsage, Err: err}
	}
	return &ExitError{Code: ExitCodeFailure, Err: err}
}
