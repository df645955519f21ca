// Package config resolves everything a scan session needs before it starts:
// the environment file describing the cloud provider, the account list used to
// build an inventory and the session options given on the command line.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/liamg/stormscan/failure"
	"github.com/spf13/viper"
)

const (
	ProviderHetznerCloud = "hetzner_cloud"
	ProviderHCloud       = "hcloud"
)

type Provider struct {
	Type        string `mapstructure:"type"`
	APITokenEnv string `mapstructure:"api_token_env"`
	VMModel     string `mapstructure:"vm_model"`
	VMOSImage   string `mapstructure:"vm_os_image"`
	Location    string `mapstructure:"location"`
}

type SSH struct {
	User string `mapstructure:"user"`
	Port int    `mapstructure:"port"`
}

// Readiness controls how long a new host is polled before bootstrapping it.
// With Strict unset, exhausting the attempts is logged and the session carries on.
type Readiness struct {
	Attempts int           `mapstructure:"attempts"`
	Interval time.Duration `mapstructure:"interval"`
	Strict   bool          `mapstructure:"strict"`
}

type Execution struct {
	// CommandTimeout bounds bootstrap and scan commands. Zero disables it.
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

type Journal struct {
	Path string `mapstructure:"path"`
}

// Environment is the YAML execution environment file.
type Environment struct {
	Provider  Provider  `mapstructure:"provider"`
	SSH       SSH       `mapstructure:"ssh"`
	Readiness Readiness `mapstructure:"readiness"`
	Execution Execution `mapstructure:"execution"`
	Journal   Journal   `mapstructure:"journal"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.api_token_env", "HCLOUD_TOKEN")
	v.SetDefault("ssh.user", "root")
	v.SetDefault("ssh.port", 22)
	v.SetDefault("readiness.attempts", 5)
	v.SetDefault("readiness.interval", "5s")
	v.SetDefault("readiness.strict", false)
	v.SetDefault("execution.command_timeout", "6h")
	v.SetDefault("journal.path", "")
}

// LoadEnvironment reads and validates the environment file at path.
func LoadEnvironment(path string) (*Environment, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, failure.Config("reading environment config", err)
	}

	var env Environment
	if err := v.Unmarshal(&env); err != nil {
		return nil, failure.Config("decoding environment config", err)
	}

	if err := env.validate(); err != nil {
		return nil, failure.Config("validating environment config", err)
	}

	return &env, nil
}

func (e *Environment) validate() error {
	switch strings.ToLower(e.Provider.Type) {
	case ProviderHetznerCloud, ProviderHCloud:
	case "":
		return fmt.Errorf("provider.type is required")
	default:
		return fmt.Errorf("unsupported provider type '%s'", e.Provider.Type)
	}
	if e.Provider.APITokenEnv == "" {
		return fmt.Errorf("provider.api_token_env is required")
	}
	if e.SSH.User == "" {
		return fmt.Errorf("ssh.user must not be empty")
	}
	if e.SSH.Port <= 0 || e.SSH.Port > 65535 {
		return fmt.Errorf("ssh.port %d is out of range", e.SSH.Port)
	}
	if e.Readiness.Attempts < 1 {
		return fmt.Errorf("readiness.attempts must be at least 1")
	}
	if e.Readiness.Interval < 0 {
		return fmt.Errorf("readiness.interval must not be negative")
	}
	if e.Execution.CommandTimeout < 0 {
		return fmt.Errorf("execution.command_timeout must not be negative")
	}
	return nil
}

// APIToken reads the provider token from the environment variable the file names.
func (e *Environment) APIToken() (string, error) {
	token := strings.TrimSpace(os.Getenv(e.Provider.APITokenEnv))
	if token == "" {
		return "", failure.Config("resolving provider token", fmt.Errorf("environment variable %s is not set", e.Provider.APITokenEnv))
	}
	return token, nil
}

// LoadDotEnv loads variables from a dotenv file without overriding ones already set.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return failure.Config("loading env file", err)
	}
	return nil
}
