package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/logging"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

type appConfig struct {
	Log      logging.Config  `koanf:"log"`
	Database databaseConfig  `koanf:"database"`
	Redis    redisConfig     `koanf:"redis"`
	Keys     keysConfig      `koanf:"keys"`
	Auth     authcore.Config `koanf:"auth"`
}

type databaseConfig struct {
	URL string `koanf:"url"`
}

type redisConfig struct {
	Addr string `koanf:"addr"`
}

// keysConfig points at the PEM files written by "authcore keygen". For
// hs256 the secret is read from the environment variable named by HMACEnv.
type keysConfig struct {
	PrivateKeyFile string `koanf:"private_key_file"`
	PublicKeyFile  string `koanf:"public_key_file"`
	HMACEnv        string `koanf:"hmac_env"`
}

// flagKeys maps persistent flags onto config paths.
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"log-format":   "log.format",
	"database-url": "database.url",
	"redis-addr":   "redis.addr",
}

func defaultAppConfig() appConfig {
	return appConfig{
		Log:  logging.Config{Level: "info", Format: "json"},
		Auth: authcore.DefaultConfig(),
	}
}

// loadConfig layers defaults, the optional YAML file and command-line flags,
// in increasing priority.
func loadConfig(flags *pflag.FlagSet) (appConfig, error) {
	cfg := defaultAppConfig()
	k := koanf.New(".")

	path, _ := flags.GetString("config")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	})
	if err := k.Load(provider, nil); err != nil {
		return cfg, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return cfg, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return cfg, nil
}

// loadKeys fills the session signing keys from the configured files.
func (c *appConfig) loadKeys() error {
	switch c.Auth.Session.SigningMethod {
	case "hs256":
		name := c.Keys.HMACEnv
		if name == "" {
			name = "AUTHCORE_HMAC_SECRET"
		}
		secret := strings.TrimSpace(os.Getenv(name))
		if secret == "" {
			return oops.Code("KEYS_MISSING").With("env", name).Errorf("hs256 secret is not set")
		}
		c.Auth.Session.PrivateKey = []byte(secret)
		return nil
	default:
		if c.Keys.PrivateKeyFile == "" || c.Keys.PublicKeyFile == "" {
			return oops.Code("KEYS_MISSING").Errorf("keys.private_key_file and keys.public_key_file are required")
		}
		priv, err := os.ReadFile(c.Keys.PrivateKeyFile)
		if err != nil {
			return oops.Code("KEYS_READ_FAILED").With("path", c.Keys.PrivateKeyFile).Wrap(err)
		}
		pub, err := os.ReadFile(c.Keys.PublicKeyFile)
		if err != nil {
			return oops.Code("KEYS_READ_FAILED").With("path", c.Keys.PublicKeyFile).Wrap(err)
		}
		c.Auth.Session.PrivateKey = priv
		c.Auth.Session.PublicKey = pub
		return nil
	}
}

func (c *appConfig) logger() *slog.Logger {
	return logging.New(c.Log, os.Stderr)
}
