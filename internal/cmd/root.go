package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Version   string
	BuildTime string
	cfgFile   string
)

var rootCmd = &cobra.Command{
	Use:   "gemini-router",
	Short: "Credential-hiding REST gateway for the Gemini API",
	Long: `Gemini Router is a small gateway that sits between client
applications and the Gemini generateContent API. Callers authenticate
with a shared secret; the Gemini API key stays on the server.`,
	RunE: runServe,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("log-dir", "./logs", "log directory")

	// Server flags are persistent so the root command and the serve
	// subcommand share one flag set; binding the same viper key twice
	// would leave only the last binding live.
	rootCmd.PersistentFlags().String("host", "0.0.0.0", "server host")
	rootCmd.PersistentFlags().Int("port", 8090, "server port")
	rootCmd.PersistentFlags().String("mode", "release", "server mode (debug/release/test)")

	viper.BindPFlag("server.host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("server.port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("server.mode", rootCmd.PersistentFlags().Lookup("mode"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./data")
		viper.AddConfigPath("$HOME/.gemini-router")
	}

	// Secrets and generation defaults come from the environment when
	// not present in the config file.
	viper.BindEnv("provider.api_key", "GEMINI_API_KEY")
	viper.BindEnv("security.api_key", "ROUTER_API_KEY")
	viper.BindEnv("defaults.model", "GEMINI_MODEL")
	viper.BindEnv("defaults.temperature", "GEMINI_TEMPERATURE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
