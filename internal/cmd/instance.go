package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/atikulmunna/strand/internal/config"
	"github.com/atikulmunna/strand/internal/instance"
	"github.com/spf13/cobra"
)

var instanceCmd = &cobra.Command{
	Use:   "instance",
	Short: "Manage log instances",
}

var instanceCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an instance and print its id",
	Long: `Ask the server for a new instance and print its id. When the server
cannot be reached a local fallback id (instance-<unix-ms>) is printed and a
warning goes to stderr.

Example:
  strand view --instance "$(strand instance create)"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		config.InitLogger(os.Stderr, cfg.LogLevel)

		id, err := instance.NewCreator(cfg.BaseURL).Create(cmd.Context())
		if err != nil {
			slog.Warn("instance creation failed, using fallback id", "error", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	instanceCmd.AddCommand(instanceCreateCmd)
	rootCmd.AddCommand(instanceCmd)
}
