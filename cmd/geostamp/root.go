package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/menta2k/geostamp/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "geostamp",
	Short: "Stamp photos with an address, coordinates, a timestamp and a map",
	Long: `geostamp draws a translucent caption panel across the bottom of a photo
with the word-wrapped address, the GPS coordinates and the capture time, and
an optional map thumbnail in the bottom-right corner.

Configuration is read from $HOME/.geostamp.{json,yaml,toml}, GEOSTAMP_*
environment variables and a .env file in the working directory.

Examples:
  # Stamp a single photo
  geostamp stamp --in photo.jpg --address "Pariser Platz, Berlin" --lat 52.516275 --lng 13.377704

  # Stamp a selfie with an OpenStreetMap thumbnail
  geostamp stamp --in selfie.jpg --front --lat 48.8584 --lng 2.2945 --map-provider tiles

  # Stamp every photo in a directory as WebP
  geostamp stamp --in ./DCIM --out ./stamped --format webp --address "Trip"

  # Start HTTP server
  geostamp serve --port 8080`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.geostamp.json)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigName(".geostamp")
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig decodes the effective configuration from viper
func loadConfig() (*config.Config, error) {
	return config.LoadViper(viper.GetViper())
}
