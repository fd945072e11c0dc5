package util

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Config is the YAML configuration file. Each key has the meaning of the command line flag of the same name.
type Config struct {
	Out      string `yaml:"o"`
	Threads  int    `yaml:"t"`
	Verbose  bool   `yaml:"vb"`
	LLVM     bool   `yaml:"ll"`
	Color    bool   `yaml:"color"`
	NoOpt    bool   `yaml:"O0"`
	Info     string `yaml:"info"`
	Progress bool   `yaml:"progress"`
}

// ---------------------
// ----- Functions -----
// ---------------------

// LoadConfig reads the YAML configuration file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if c.Threads != 0 && (c.Threads < 1 || c.Threads > maxThreads) {
		return Config{}, fmt.Errorf("config %s: thread count must be integer in range [1, %d]", path, maxThreads)
	}
	return c, nil
}

// Merge returns opt completed with the settings of c. Settings given on the command line take precedence.
func (c Config) Merge(opt Options) Options {
	if len(opt.Out) == 0 {
		opt.Out = c.Out
	}
	if opt.Threads == 0 {
		opt.Threads = c.Threads
	}
	if len(opt.Info) == 0 {
		opt.Info = c.Info
	}
	opt.Verbose = opt.Verbose || c.Verbose
	opt.LLVM = opt.LLVM || c.LLVM
	opt.Color = opt.Color || c.Color
	opt.NoOpt = opt.NoOpt || c.NoOpt
	opt.Progress = opt.Progress || c.Progress
	return opt
}
