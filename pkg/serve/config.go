// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/antgroup/tide/pkg/version"
)

const (
	DefaultReadTimeout  = 5 * time.Minute
	DefaultWriteTimeout = 5 * time.Minute
	DefaultIdleTimeout  = 5 * time.Minute
)

// Duration wraps time.Duration so config files can say "90s" or "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	du, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = du
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type ServerConfig struct {
	Listen        string   `toml:"listen"`
	Repositories  string   `toml:"repositories"`
	IdleTimeout   Duration `toml:"idle_timeout,omitempty"`
	ReadTimeout   Duration `toml:"read_timeout,omitempty"`
	WriteTimeout  Duration `toml:"write_timeout,omitempty"`
	BannerVersion string   `toml:"banner_version,omitempty"`
}

// NewServerConfig loads a toml server config, filling defaults for
// anything the file leaves unset.
func NewServerConfig(file string) (*ServerConfig, error) {
	r, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	sc := &ServerConfig{
		Listen: "127.0.0.1:21020",
		IdleTimeout: Duration{
			Duration: DefaultIdleTimeout,
		},
		ReadTimeout: Duration{
			Duration: DefaultReadTimeout,
		},
		WriteTimeout: Duration{
			Duration: DefaultWriteTimeout,
		},
		BannerVersion: version.GetServerVersion(),
	}
	if _, err = toml.NewDecoder(r).Decode(sc); err != nil {
		return nil, err
	}
	return sc, nil
}
