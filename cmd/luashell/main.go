// Package main provides the luashell CLI application entry point.
// luashell is a serial-terminal front-end for an embedded Lua runtime: it runs
// the device shell over a serial port or the local console.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"luashell/internal/config"
	"luashell/internal/logger"
	"luashell/internal/runtime"
	"luashell/internal/storage"
	"luashell/internal/terminal"
	"luashell/internal/version"
)

var (
	configFile string
	detailed   bool
	cfg        config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "luashell",
	Short: "luashell - serial shell for an embedded Lua runtime",
	Long: `luashell runs the device Lua shell over a serial port or the local console.
Type Lua at the '>' prompt, '*name' to download a module, '@name' to reload one,
and ':+e', ':-e', ':+h', ':-h' to switch the exec and housekeeping loops.`,
	SilenceUsage: true,
	RunE:         runShell, // Default behavior is to run the shell
}

// runCmd represents the run command (explicit version of default behavior)
var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Run the shell",
	Long:         `Load the main module, call setup() and setup1(), then serve the shell until interrupted.`,
	SilenceUsage: true,
	RunE:         runShell,
}

// loadCmd boots a single module from storage and exits
var loadCmd = &cobra.Command{
	Use:   "load <module>",
	Short: "Load a module from storage, run its setup and exit",
	Long: `Load <module> from storage as if it were the main module, call its setup()
and setup1() functions and exit. Output goes to stdout.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runLoad,
}

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(_ *cobra.Command, _ []string) error {
		return config.WriteYAML(os.Stdout, cfg)
	},
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display the version of luashell.`,
	Run: func(_ *cobra.Command, _ []string) {
		if detailed {
			fmt.Println(version.GetDetailedVersion())
			return
		}
		fmt.Println(version.GetFormattedVersion())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default: ./luashell.yaml)")
	flags.String(config.KeyPort, "", "Serial device to serve the shell on (default: local console)")
	flags.Int(config.KeyBaud, 115200, "Serial baud rate")
	flags.String(config.KeyStorage, "./sd", "Directory or afs URL holding module files")
	flags.String(config.KeyMainModule, "main", "Module loaded at startup")
	flags.String(config.KeyLogLevel, "", "Set log level (debug|info|warn|error) [default: info]")
	flags.String(config.KeyLogFile, "", "Write logs to file instead of stderr")
	flags.Bool(config.KeyTestMode, false, "Run in deterministic test mode")

	// Bind flags to viper
	for _, key := range []string{
		config.KeyPort, config.KeyBaud, config.KeyStorage, config.KeyMainModule,
		config.KeyLogLevel, config.KeyLogFile, config.KeyTestMode,
	} {
		if err := viper.BindPFlag(key, flags.Lookup(key)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", key, err)
			os.Exit(1)
		}
	}

	versionCmd.Flags().BoolVar(&detailed, "detailed", false, "Show commit and build details")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	// Load configuration and configure logger before any command execution
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	var err error
	cfg, err = config.Load(viper.GetViper(), configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Configure logger with the resolved settings
	if err := logger.Configure(cfg.LogLevel, cfg.LogFile, cfg.TestMode); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
}

func runShell(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	port, err := openPort(cfg)
	if err != nil {
		return err
	}
	defer port.Close()

	term := terminal.New(port)
	rt, err := runtime.New(cfg, store, port, term)
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("Starting luashell", "version", version.GetVersion(), "session", rt.Session().ID(), "storage", store.BaseURL())

	rt.Setup(ctx)
	rt.Setup1()

	err = rt.Run(ctx, port.Done())
	if errors.Is(err, context.Canceled) || errors.Is(port.Err(), terminal.ErrInterrupted) {
		logger.Info("Shell stopped")
		return nil
	}
	return err
}

func runLoad(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	boot := cfg
	boot.MainModule = args[0]

	term := terminal.New(os.Stdout)
	rt, err := runtime.New(boot, store, noInput{}, term)
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Debug("Loading module", "module", boot.MainModule, "storage", store.BaseURL())
	rt.Setup(ctx)
	rt.Setup1()
	return nil
}

func openPort(c config.Config) (*terminal.Port, error) {
	if c.Port != "" {
		logger.Info("Opening serial port", "port", c.Port, "baud", c.Baud)
		return terminal.OpenSerial(c.Port, c.Baud)
	}
	return terminal.OpenConsole()
}

// noInput is the byte source for one-shot commands that never read the terminal.
type noInput struct{}

func (noInput) TryReadByte() (byte, bool) { return 0, false }
