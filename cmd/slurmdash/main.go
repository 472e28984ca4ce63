package main

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/slurmdash/slurmdash/internal/common"
	"github.com/slurmdash/slurmdash/internal/statesync"
	"github.com/slurmdash/slurmdash/internal/statesync/configuration"
)

const CustomConfigLocation string = "config"

func init() {
	pflag.String(CustomConfigLocation, "", "Fully qualified path to application configuration file")
	pflag.Parse()
}

func main() {
	common.ConfigureLogging()
	common.BindCommandlineArguments()

	var config configuration.SlurmdashConfiguration
	userSpecifiedConfig := viper.GetString(CustomConfigLocation)
	common.LoadConfig(&config, "./config/slurmdash", userSpecifiedConfig)

	config.Sync.ApplyDefaults()
	if err := configuration.ValidateSlurmdashConfiguration(config); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	log.Info("Starting...")
	log.Infof("Monitoring hosts %v via %s", config.Hosts, config.ApiBaseUrl)

	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)

	shutdownMetricServer := common.ServeMetrics(config.MetricsPort)
	defer shutdownMetricServer()

	stop, wg, _ := statesync.StartUp(config)
	go func() {
		<-stopSignal
		stop()
	}()
	wg.Wait()
}
