package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server Server `yaml:"server" json:"server"`
	Relay  Relay  `yaml:"relay" json:"relay"`
	Auth   Auth   `yaml:"auth" json:"auth"`
	Log    Log    `yaml:"log" json:"log"`
}

// LoadFromFile 读取指定路径的 YAML 配置文件
func LoadFromFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultPath 返回配置文件路径：优先 CUDISYNC_CONFIG，否则为 internal/config/config.yaml
func DefaultPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv("CUDISYNC_CONFIG")); p != "" {
		return p, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, "internal", "config", "config.yaml"), nil
}

// LoadDefault 加载默认路径的配置；文件不存在时全部使用默认值
func LoadDefault() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	return cfg, err
}
