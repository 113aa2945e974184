package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	yaml "gopkg.in/yaml.v2"

	"github.com/YuminosukeSato/mlcore/pkg/errors"
	"github.com/YuminosukeSato/mlcore/pkg/log"
	"github.com/YuminosukeSato/mlcore/pkg/tabular"
)

type rootCmdConfig struct {
	configPath string
	logLevel   string
	delimiter  string

	comma rune
}

// setup runs before every subcommand: it overlays the YAML file onto flags
// that were not set explicitly, then configures logging and the delimiter.
func (rc *rootCmdConfig) setup(cmd *cobra.Command) error {
	if rc.configPath != "" {
		if err := applyConfigFile(cmd, rc.configPath); err != nil {
			return err
		}
	}
	if _, ok := log.ParseLevel(rc.logLevel); !ok {
		return errors.NewConfigurationError("log-level", "must be debug, info, warn or error", rc.logLevel)
	}
	log.SetupLogger(rc.logLevel)

	comma, err := tabular.ParseDelimiter(rc.delimiter)
	if err != nil {
		return err
	}
	rc.comma = comma
	return nil
}

// readTable loads the input file named by path.
func (rc *rootCmdConfig) readTable(path string) (*tabular.Table, error) {
	return tabular.ReadFile(path, rc.comma)
}

// applyConfigFile reads a YAML mapping of flag names to values. Keys must name
// a flag of cmd; values only apply to flags not given on the command line.
func applyConfigFile(cmd *cobra.Command, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading config %s", path)
	}
	values := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return errors.NewConfigurationError("config", err.Error(), path)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		flag := lookupFlag(cmd, key)
		if flag == nil || key == "config" {
			return errors.NewConfigurationError(key, fmt.Sprintf("unknown key in %s for command %q", path, cmd.Name()), values[key])
		}
		if flag.Changed {
			continue
		}
		if err := flag.Value.Set(fmt.Sprint(values[key])); err != nil {
			return errors.NewConfigurationError(key, err.Error(), values[key])
		}
	}
	return nil
}

func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	return cmd.InheritedFlags().Lookup(name)
}
