package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/partloader/internal/app"
	"github.com/GriffinCanCode/partloader/internal/infrastructure/config"
)

const (
	FlagLogLevel    = "log-level"
	FlagDev         = "dev"
	FlagCacheDir    = "cache-dir"
	FlagTrustNative = "trust-native"
	FlagOS          = "os"
	FlagArch        = "arch"
	FlagLocale      = "locale"
	FlagRuntime     = "runtime"
	FlagOutput      = "output"
)

// BuildVersion is set at link time
var BuildVersion = "dev"

// state is shared by the commands of one invocation
type state struct {
	cfg *config.Config
}

// New builds the root command
func New() *cobra.Command {
	st := &state{}

	root := &cobra.Command{
		Use:   "partloader [sub-command]",
		Short: "Resolve and download the bundles of an application descriptor",
		Long: `partloader reads an application descriptor (YAML or TOML), filters its
artifacts for the current platform and downloads bundles on demand.

Eager bundles are downloaded as soon as a descriptor is opened; lazy bundles
are downloaded the first time a code unit they own is resolved.

Every setting can also be given through the environment, see FETCH_*,
PLATFORM_*, LOG_*, STATUS_* and TRUST_NATIVE.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, cfg); err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}

	flags := root.PersistentFlags()
	flags.String(FlagLogLevel, "", "log level (debug, info, warn, error)")
	flags.Bool(FlagDev, false, "human readable logs")
	flags.String(FlagCacheDir, "", "download cache directory")
	flags.Bool(FlagTrustNative, false, "allow native libraries to be activated")
	flags.String(FlagOS, "", "override the detected operating system name")
	flags.String(FlagArch, "", "override the detected architecture")
	flags.String(FlagLocale, "", "override the detected locale, e.g. de_DE")
	flags.String(FlagRuntime, "", "runtime version used for runtime constraints")

	root.AddCommand(
		newPreloadCmd(st),
		newResolveCmd(st),
		newDownloadCmd(st),
		newBundlesCmd(st),
		newServeCmd(st),
		newVersionCmd(),
	)
	return root
}

// applyFlags overrides environment configuration with flags the user set
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	texts := map[string]*string{
		FlagLogLevel: &cfg.Logging.Level,
		FlagCacheDir: &cfg.Fetch.CacheDir,
		FlagOS:       &cfg.Platform.OS,
		FlagArch:     &cfg.Platform.Arch,
		FlagLocale:   &cfg.Platform.Locale,
		FlagRuntime:  &cfg.Platform.Runtime,
	}
	for name, dst := range texts {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return fmt.Errorf("getting %s flag failed: %w", name, err)
		}
		*dst = v
	}

	bools := map[string]*bool{
		FlagDev:         &cfg.Logging.Development,
		FlagTrustNative: &cfg.Trust.NativeAllowed,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetBool(name)
		if err != nil {
			return fmt.Errorf("getting %s flag failed: %w", name, err)
		}
		*dst = v
	}
	return nil
}

// open starts a launch of the descriptor at path. Eager failures are
// returned with a usable launcher.
func (st *state) open(ctx context.Context, path string) (*app.Launcher, error) {
	return app.Open(ctx, path, app.Options{Config: st.cfg})
}
