// Package cmd assembles the command line interface.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/insectos/insectos-go/cmd/serve"
	"github.com/insectos/insectos-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "insectos",
		Short: "Insectos API server",
		Long:  "Backend aggregating iNaturalist insect data with a relational observation store.",
	}

	setupFlags(rootCmd)

	// Re-apply viper values after flag parsing so command line arguments
	// take precedence over file and environment configuration.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return viper.Unmarshal(settings)
	}

	rootCmd.AddCommand(serve.Command(settings))

	return rootCmd
}

// setupFlags binds persistent flags to their viper keys so command line
// arguments override file and environment configuration.
func setupFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().StringP("port", "p", "8080", "Port to listen on")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("webserver.port", rootCmd.PersistentFlags().Lookup("port"))
}
