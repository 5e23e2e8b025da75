// Package config loads the YAML configuration and the ancillary files
// next to it: the SFTP host key, the webhook URL list and the bot
// token.
package config

import (
	"fmt"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// Defaults applied to fields the YAML document leaves out.
const (
	DefaultMongoPrefix = "mongodb://"
	DefaultMongoHost   = "127.0.0.1"
	DefaultMongoPort   = 27017
	DefaultSFTPHost    = "0.0.0.0"
	DefaultSFTPPort    = 8022
)

// Auth is one SFTP credential entry.  Password and PubKey are both
// optional; an entry with neither never matches.
type Auth struct {
	Username string  `yaml:"Username"`
	Password *string `yaml:"Password"`
	PubKey   string  `yaml:"PubKey"`
}

// MongoDB is the document store connection section.
type MongoDB struct {
	Prefix string `yaml:"Prefix"`
	Host   string `yaml:"Host"`
	Port   int    `yaml:"Port"`
}

// SFTP is the frontend listener section.
type SFTP struct {
	Host   string `yaml:"Host"`
	Port   int    `yaml:"Port"`
	NoAuth bool   `yaml:"NoAuth"`
	Auths  []Auth `yaml:"Auths"`
}

// Config is the whole YAML document.
type Config struct {
	MongoDB MongoDB `yaml:"MongoDB"`
	SFTP    SFTP    `yaml:"SFTP"`
}

// Default returns a Config with every field at its default.
func Default() *Config {
	password := "susman"
	return &Config{
		MongoDB: MongoDB{
			Prefix: DefaultMongoPrefix,
			Host:   DefaultMongoHost,
			Port:   DefaultMongoPort,
		},
		SFTP: SFTP{
			Host:   DefaultSFTPHost,
			Port:   DefaultSFTPPort,
			Auths:  []Auth{{Username: "Anonymous", Password: &password}},
		},
	}
}

// Load reads the YAML document at path over the defaults.
func Load(path string) (*Config, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to expand config path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	return cfg, nil
}

// MongoURL renders the document store connection URL.
func (c *Config) MongoURL() string {
	return fmt.Sprintf("%s%s:%d", c.MongoDB.Prefix, c.MongoDB.Host, c.MongoDB.Port)
}

// SFTPAddr renders the frontend listen address.
func (c *Config) SFTPAddr() string {
	return fmt.Sprintf("%s:%d", c.SFTP.Host, c.SFTP.Port)
}

// readFile expands ~ in path and reads the file.
func readFile(path string) ([]byte, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to expand path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}
	return data, nil
}

// ReadWebhooks reads a newline separated list of webhook URLs,
// skipping blank lines.
func ReadWebhooks(path string) ([]string, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var hooks []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			hooks = append(hooks, line)
		}
	}
	return hooks, nil
}

// ReadToken reads and trims the bot token file.
func ReadToken(path string) (string, error) {
	data, err := readFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// ReadHostKey reads the SFTP host private key file.
func ReadHostKey(path string) ([]byte, error) {
	return readFile(path)
}
