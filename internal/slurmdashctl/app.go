package slurmdashctl

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"

	"github.com/slurmdash/slurmdash/internal/statesync"
	"github.com/slurmdash/slurmdash/internal/statesync/configuration"
)

type App struct {
	// Parameters passed to the CLI by the user.
	Params *Params
	// Out is used to write the output. Defaults to standard out,
	// but can be overridden in tests to make assertions on the application's output.
	Out io.Writer
}

// Params struct holds all user-customizable parameters.
// Using a single struct for all CLI commands ensures that all flags are distinct
// and that they can be provided either dynamically on a command line, or
// statically in a config file that's reused between command runs.
type Params struct {
	ApiBaseUrl     string
	WebSocketUrl   string
	Hosts          []string
	RequestTimeout time.Duration
}

func New() *App {
	return &App{
		Params: &Params{},
		Out:    os.Stdout,
	}
}

func (a *App) validateParams() error {
	if a.Params.ApiBaseUrl == "" {
		return errors.Errorf("api url must be set")
	}
	if len(a.Params.Hosts) == 0 {
		return errors.Errorf("at least one host must be given")
	}
	return nil
}

func (a *App) syncConfiguration() configuration.SlurmdashConfiguration {
	webSocketUrl := a.Params.WebSocketUrl
	if webSocketUrl == "" {
		webSocketUrl = derivePushUrl(a.Params.ApiBaseUrl)
	}
	config := configuration.SlurmdashConfiguration{
		ApiBaseUrl:   a.Params.ApiBaseUrl,
		WebSocketUrl: webSocketUrl,
		Hosts:        a.Params.Hosts,
		Sync: configuration.SyncConfiguration{
			RequestTimeout: a.Params.RequestTimeout,
			// One-shot commands need results delivered as soon as they land.
			PublishBatchWindow: -1,
		},
	}
	config.Sync.ApplyDefaults()
	return config
}

// derivePushUrl maps the gateway base url onto its push endpoint,
// e.g. https://gw/api -> wss://gw/api/push.
func derivePushUrl(apiBaseUrl string) string {
	url := apiBaseUrl
	if strings.HasPrefix(url, "https://") {
		url = "wss://" + strings.TrimPrefix(url, "https://")
	} else if strings.HasPrefix(url, "http://") {
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return strings.TrimSuffix(url, "/") + "/push"
}

// startEngine wires a synchronization engine against the gateway and blocks
// until every host has synced at least once. The returned stop function must
// be called when the command is done.
func (a *App) startEngine() (*statesync.Manager, func(), error) {
	if err := a.validateParams(); err != nil {
		return nil, nil, err
	}
	config := a.syncConfiguration()
	if err := configuration.ValidateSlurmdashConfiguration(config); err != nil {
		return nil, nil, err
	}

	stop, _, manager := statesync.StartUp(config)
	err := retry.Do(
		func() error {
			if !manager.WaitForFirstSync(5 * time.Second) {
				return errors.Errorf("hosts %v not synced yet", a.Params.Hosts)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
	)
	if err != nil {
		stop()
		return nil, nil, errors.Wrapf(err, "failed to sync hosts %v", a.Params.Hosts)
	}
	return manager, stop, nil
}
