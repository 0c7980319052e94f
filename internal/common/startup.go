package common

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	commonconfig "github.com/streamhouse/quotasuite/internal/common/config"
	"github.com/streamhouse/quotasuite/internal/common/logging"
)

// LoadConfig reads the config file in path into config.
// Configuration errors are fatal; a suite run against a
// half-parsed quota configuration would report nonsense.
func LoadConfig(config interface{}, path string) {
	viper.SetConfigName("config")
	viper.AddConfigPath(path)
	if err := viper.ReadInConfig(); err != nil {
		log.Error(err)
		os.Exit(-1)
	}
	if err := viper.Unmarshal(config, commonconfig.CustomHooks...); err != nil {
		log.Error(err)
		os.Exit(-1)
	}
}

func ConfigureLogging() {
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	log.SetOutput(os.Stdout)
}

// ConfigureCommandLineLogging strips timestamps and levels so CLI
// output reads as plain text.
func ConfigureCommandLineLogging() {
	log.SetFormatter(&logging.CommandLineFormatter{})
	log.SetOutput(os.Stdout)
}
