package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nicklasfrahm/sshclient/pkg/engine"
	"github.com/nicklasfrahm/sshclient/pkg/ops"
	"github.com/nicklasfrahm/sshclient/pkg/sshx"
)

var version = "dev"
var help bool

// flags holds the persistent flags shared by all commands.
var flags struct {
	config     string
	envFile    string
	logLevel   string
	host       string
	user       string
	port       int
	keyFile    string
	remotePath string
	localPath  string
}

var logger zerolog.Logger

var rootCmd = &cobra.Command{
	Use:   "sshclient",
	Short: "Run commands on and transfer files to remote hosts",
	Long: `Execute commands on a remote host and transfer files
to and from it over a single SSH connection. Your SSH
key is provisioned onto the host before connecting.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if help {
			cmd.Help()
			os.Exit(0)
		}

		level, err := zerolog.ParseLevel(flags.logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}

		logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).Level(level)

		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(0)
	},
	Version:      version,
	SilenceUsage: true,
}

func init() {
	pflags := rootCmd.PersistentFlags()
	pflags.BoolVarP(&help, "help", "h", false, "display help for command")
	pflags.StringVarP(&flags.config, "config", "c", ops.DefaultConfigPath, "path to the playbook")
	pflags.StringVar(&flags.envFile, "env-file", engine.DefaultEnvFile, "path to a dotenv file")
	pflags.StringVarP(&flags.logLevel, "log-level", "l", zerolog.LevelInfoValue, "log level")
	pflags.StringVarP(&flags.host, "host", "H", "", "remote host or alias of the ssh config")
	pflags.StringVarP(&flags.user, "user", "u", "", "remote user")
	pflags.IntVarP(&flags.port, "port", "p", 0, "remote port")
	pflags.StringVarP(&flags.keyFile, "key-file", "i", "", "path to the private key")
	pflags.StringVarP(&flags.remotePath, "remote-path", "r", "", "remote directory for transfers")
	pflags.StringVar(&flags.localPath, "local-path", "", "local directory for downloads")
}

// options translates the persistent flags into operation options.
func options(cmd *cobra.Command) []ops.Option {
	opts := []ops.Option{
		ops.WithLogger(&logger),
		ops.WithEnvFile(flags.envFile),
		ops.WithOverrides(engine.Config{
			SSH: sshx.Config{
				Host:    flags.host,
				User:    flags.user,
				Port:    flags.port,
				KeyFile: flags.keyFile,
			},
			RemotePath: flags.remotePath,
			LocalPath:  flags.localPath,
		}),
	}

	// Only an explicitly passed playbook must exist.
	if cmd.Flags().Changed("config") {
		opts = append(opts, ops.WithConfigPath(flags.config))
	}

	return opts
}

// Execute starts the invocation of the command line interface.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
