// Package cli binds command-line options to flags and SCICONV_* environment
// variables.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable bound by BindOptions.
const EnvPrefix = "SCICONV"

// Opt is a single command-line option.
type Opt struct {
	DestP      interface{} // pointer to the destination
	Flag       string
	Short      string
	Default    interface{}
	Desc       string
	Persistent bool // also applies to subcommands
}

// NewViper returns a viper instance reading SCICONV_* variables, with dashes
// in flag names mapped to underscores.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	return v
}

// EnvName returns the environment variable bound to a flag.
func EnvName(flag string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// BindOptions adds opts to cmd and registers them with v. Each destination
// starts from its environment value when one is set; a flag given on the
// command line overrides it when the command is parsed. Every option is
// bound even when an environment value fails to parse; those failures are
// returned together.
func BindOptions(v *viper.Viper, cmd *cobra.Command, opts []Opt) error {
	var errs error
	for _, o := range opts {
		fs := cmd.Flags()
		if o.Persistent {
			fs = cmd.PersistentFlags()
		}
		switch destP := o.DestP.(type) {
		case *string:
			var d string
			if o.Default != nil {
				d = o.Default.(string)
			}
			fs.StringVarP(destP, o.Flag, o.Short, d, o.Desc)
			mustBindPFlag(v, o.Flag, fs)
			*destP = v.GetString(o.Flag)
		case *int:
			var d int
			if o.Default != nil {
				d = o.Default.(int)
			}
			fs.IntVarP(destP, o.Flag, o.Short, d, o.Desc)
			mustBindPFlag(v, o.Flag, fs)
			*destP = v.GetInt(o.Flag)
		case *float64:
			var d float64
			if o.Default != nil {
				d = o.Default.(float64)
			}
			fs.Float64VarP(destP, o.Flag, o.Short, d, o.Desc)
			mustBindPFlag(v, o.Flag, fs)
			*destP = v.GetFloat64(o.Flag)
		case *bool:
			var d bool
			if o.Default != nil {
				d = o.Default.(bool)
			}
			fs.BoolVarP(destP, o.Flag, o.Short, d, o.Desc)
			mustBindPFlag(v, o.Flag, fs)
			*destP = v.GetBool(o.Flag)
		case *[]string:
			var d []string
			if o.Default != nil {
				d = o.Default.([]string)
			}
			fs.StringSliceVarP(destP, o.Flag, o.Short, d, o.Desc)
			mustBindPFlag(v, o.Flag, fs)
			*destP = v.GetStringSlice(o.Flag)
		case *zapcore.Level:
			var d zapcore.Level
			if o.Default != nil {
				d = o.Default.(zapcore.Level)
			}
			LevelVarP(fs, destP, o.Flag, o.Short, d, o.Desc)
			mustBindPFlag(v, o.Flag, fs)
			if s := v.GetString(o.Flag); s != "" {
				if err := (*levelValue)(destP).Set(s); err != nil {
					errs = multierr.Append(errs, fmt.Errorf("%s: %w", EnvName(o.Flag), err))
				}
			}
		default:
			panic(fmt.Errorf("unknown destination type %T", o.DestP))
		}
	}
	return errs
}

func mustBindPFlag(v *viper.Viper, key string, fs *pflag.FlagSet) {
	if err := v.BindPFlag(key, fs.Lookup(key)); err != nil {
		panic(err)
	}
}
