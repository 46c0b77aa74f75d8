package plugin

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultSSHPort      = 22
	DefaultTimeout      = 5 * time.Second
	DefaultPollInterval = 30 * time.Second
	DefaultUPSCommand   = "apcaccess status"
	DefaultSNMPPort     = 161
)

// Mode selects where a device's metrics are collected.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// DatabaseConfig holds the connection URL for the sample store.
// Supported URL schemes: sqlite://, postgres://, mysql://
// Leave URL empty to disable database persistence.
type DatabaseConfig struct {
	URL string `mapstructure:"url" json:"url"`
}

// LogConfig controls the zap logger built by NewLogger.
type LogConfig struct {
	Level      string `mapstructure:"level" json:"level"`
	File       string `mapstructure:"file" json:"file"`
	MaxSize    int    `mapstructure:"max_size" json:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" json:"max_age"`
	Compress   bool   `mapstructure:"compress" json:"compress"`
}

// Config is the root configuration structure.
type Config struct {
	PollInterval time.Duration           `mapstructure:"poll_interval" json:"poll_interval"`
	Devices      map[string]DeviceConfig `mapstructure:"devices" json:"devices"`
	Database     DatabaseConfig          `mapstructure:"database" json:"database"`
	Log          LogConfig               `mapstructure:"log" json:"log"`
}

// DeviceConfig describes one monitored system: the local host or a remote
// host reached over SSH.
type DeviceConfig struct {
	Name      string            `mapstructure:"name" json:"name"`
	Mode      Mode              `mapstructure:"mode" json:"mode" validate:"required,oneof=local remote"`
	Host      string            `mapstructure:"host" json:"host" validate:"required_if=Mode remote"`
	Port      int               `mapstructure:"port" json:"port" validate:"gte=0,lte=65535"`
	Username  string            `mapstructure:"username" json:"username"`
	Password  string            `mapstructure:"password" json:"-"`
	Timeout   time.Duration     `mapstructure:"timeout" json:"timeout" validate:"gte=0"`
	Variables []VariableRequest `mapstructure:"variables" json:"variables" validate:"dive"`
	UPS       *UPSConfig        `mapstructure:"ups" json:"ups,omitempty"`
}

// UPSConfig selects how APC UPS values are read for a device.
type UPSConfig struct {
	Source  string     `mapstructure:"source" json:"source" validate:"omitempty,oneof=apcaccess snmp"`
	Command string     `mapstructure:"command" json:"command"`
	SNMP    SNMPTarget `mapstructure:"snmp" json:"snmp"`
}

// SNMPTarget is an APC network management card.
type SNMPTarget struct {
	Host      string `mapstructure:"host" json:"host"`
	Port      int    `mapstructure:"port" json:"port"`
	Community string `mapstructure:"community" json:"community"`
	Version   string `mapstructure:"version" json:"version"` // e.g., "1", "2c"
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalize fills defaults in place. It never touches credentials.
func (d *DeviceConfig) Normalize() {
	if d.Mode == "" {
		d.Mode = ModeLocal
	}
	d.Mode = Mode(strings.ToLower(string(d.Mode)))
	if d.Port == 0 {
		d.Port = DefaultSSHPort
	}
	if d.Timeout <= 0 {
		d.Timeout = DefaultTimeout
	}
	if d.UPS != nil {
		if d.UPS.Source == "" {
			d.UPS.Source = "apcaccess"
		}
		if d.UPS.Command == "" {
			d.UPS.Command = DefaultUPSCommand
		}
		if d.UPS.SNMP.Port == 0 {
			d.UPS.SNMP.Port = DefaultSNMPPort
		}
		if d.UPS.SNMP.Community == "" {
			d.UPS.SNMP.Community = "public"
		}
		if d.UPS.SNMP.Host == "" {
			d.UPS.SNMP.Host = d.Host
		}
	}
}

// Validate checks the invariants of a normalized device configuration.
// The returned error wraps ErrInvalidConfig.
func (d DeviceConfig) Validate() error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: device %q: %s", ErrInvalidConfig, d.Name, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: device %q: %v", ErrInvalidConfig, d.Name, err)
	}
	return nil
}

// Normalize fills defaults for the root config and every device.
func (c *Config) Normalize() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	for name, d := range c.Devices {
		if d.Name == "" {
			d.Name = name
		}
		d.Normalize()
		c.Devices[name] = d
	}
}
