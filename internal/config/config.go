// Package config loads the daemon configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	// DataPath is the data directory of the local partition.
	DataPath string `yaml:"dataPath"`
	// Listen is the HTTP listen address for cross-partition calls.
	Listen string `yaml:"listen"`
	// PartitionName identifies this partition to its peers.
	PartitionName string `yaml:"partitionName"`
	// MinimumFreeGB is a free-space threshold for the store.
	MinimumFreeGB uint `yaml:"minimumFreeGB"`
	// Peers maps partition names to base URLs.
	Peers map[string]string `yaml:"peers"`
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var conf Config
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if conf.DataPath == "" {
		conf.DataPath = "data"
	}
	if conf.Listen == "" {
		conf.Listen = ":4242"
	}
	if conf.PartitionName == "" {
		conf.PartitionName = "local"
	}

	return conf, nil
}
