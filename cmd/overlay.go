package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "APER"

// envLookup resolves flag names against APER_* environment variables, e.g. sdk-dir -> APER_SDK_DIR
func envLookup() func(name string) (string, bool) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return func(name string) (string, bool) {
		if !v.IsSet(name) {
			return "", false
		}
		return v.GetString(name), true
	}
}

// applyValues sets every flag not given on the command line that lookup has a value for.
// Applied flags count as changed, so later sources cannot override them.
func applyValues(flags *pflag.FlagSet, source string, lookup func(name string) (string, bool)) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed || f.Name == "help" {
			return
		}
		val, ok := lookup(f.Name)
		if !ok {
			return
		}
		if err := flags.Set(f.Name, val); err != nil {
			errs = append(errs, fmt.Errorf("invalid value %q for --%s from %s: %w", val, f.Name, source, err))
		}
	})
	return errors.Join(errs...)
}
