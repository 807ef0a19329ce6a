package cli

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Options are the flags shared by every subcommand.
type Options struct {
	ConfigPath string
	Port       string
	LogLevel   string
	LogFormat  string
}

// Execute runs the CLI.
func Execute() error {
	// a missing .env is fine; real environment variables still apply
	_ = godotenv.Load()
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &Options{}

	v := viper.New()
	v.SetEnvPrefix("QUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quiz-service",
		Short:         "Live team quiz: grading, admin controls and websocket sync",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	fs := cmd.PersistentFlags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVarP(&opts.ConfigPath, "config", "c", "config/config.yaml", "path to YAML config (env: QUIZ_CONFIG)")
	fs.StringVarP(&opts.Port, "port", "p", "", "port to listen on, overrides server.port (env: QUIZ_PORT)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "log level, overrides log.level (env: QUIZ_LOG_LEVEL)")
	fs.StringVar(&opts.LogFormat, "log-format", "", "log format json|text, overrides log.format (env: QUIZ_LOG_FORMAT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.AddCommand(NewStartCmd(opts))
	cmd.AddCommand(NewMigrateCmd(opts))
	cmd.AddCommand(NewValidateCmd(opts))
	cmd.AddCommand(NewImportCatalogCmd(opts))
	return cmd
}
