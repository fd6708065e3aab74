package commands

import (
	"os"

	"github.com/systmms/multicloud/internal/logging"
	"github.com/systmms/multicloud/pkg/config"
	"github.com/systmms/multicloud/pkg/multicloud"
)

// Options carries the global flags to every command.
type Options struct {
	ConfigPath string
	Service    string
	Logger     *logging.Logger
}

func (o *Options) logger() *logging.Logger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}

// Context builds the multicloud Context for the selected service. A missing
// default configuration file is not an error: the runtime default backend
// is used instead.
func (o *Options) Context() (*multicloud.Context, error) {
	path := o.ConfigPath
	if path == "" {
		path = config.DefaultPath()
		if _, err := os.Stat(path); os.IsNotExist(err) {
			o.logger().Debug("no configuration at %s, using runtime defaults", path)
			return multicloud.New(o.Service, nil, multicloud.WithLogger(o.logger()))
		}
	}

	doc, err := multicloud.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return multicloud.New(o.Service, doc, multicloud.WithLogger(o.logger()))
}
