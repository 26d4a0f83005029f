// hidject - keystroke and mouse injection engine for Logitech Unifying and
// Lightspeed receivers, with a USB HID gadget fallback.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hidject/internal/config"
	"hidject/internal/store"
)

var version = "0.1.0"

var (
	cfgPath  string
	envFiles []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hidject",
		Short: "Inject keystrokes and mouse reports into Logitech receivers or over USB",
		Long: `hidject queues injection tasks (strings, key combos, delays, mouse reports)
and plays them against a Logitech Unifying/Lightspeed receiver through a radio
bridge, or against a host through a USB HID gadget.

Example:
  hidject enqueue press GUI r
  hidject enqueue string "notepad\n"
  hidject serve --start`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Configuration file (default: user config dir)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env", nil, ".env files to load (default: ./.env)")

	rootCmd.AddCommand(
		newServeCmd(),
		newEnqueueCmd(),
		newTasksCmd(),
		newFlushCmd(),
		newDecodeCmd(),
		newEncodeCmd(),
		newWatchCmd(),
		newDiscoverCmd(),
		newStatsCmd(),
		newGraphCmd(),
		newAutostartCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Show version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("hidject version %s\n", version)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads .env files and the configuration file.
func loadConfig() (*config.Manager, error) {
	if err := config.LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	mgr, err := config.NewManager(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	if err := mgr.Load(); err != nil {
		return nil, err
	}
	setupLogging(mgr.Get())
	mgr.RegisterChangeCallback(func() { setupLogging(mgr.Get()) })
	return mgr, nil
}

func setupLogging(cfg config.Config) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// storePath defaults to tasks.db next to the configuration file.
func storePath(mgr *config.Manager) string {
	if p := mgr.Get().Store.Path; p != "" {
		return p
	}
	return filepath.Join(filepath.Dir(mgr.Path()), "tasks.db")
}

func openStore(mgr *config.Manager) (*store.Store, error) {
	path := storePath(mgr)
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
	}
	return store.Open(path)
}
