// Package config provides configuration for leetsync daemon.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Version contains leetsync version.
var Version = "development"

// Config stores configuration for leetsync daemon.
type Config struct {
	// DB contains database connection config.
	DB DB `json:"db"`
	// Server contains daemon API server config.
	Server *Server `json:"server"`
	// SocketFile contains path to unix socket file.
	SocketFile string `json:"socket_file"`
	// Security contains security config.
	Security *Security `json:"security"`
	// GitHub contains remote repository API config.
	GitHub GitHub `json:"github"`
	// LeetCode contains submission source config.
	LeetCode LeetCode `json:"leetcode"`
	// LogLevel contains gommon log level.
	LogLevel int `json:"log_level"`
}

// Server contains server config.
type Server struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Address returns string representation of server address.
func (s Server) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Security contains security config.
type Security struct {
	// Passphrase protects durable copy of access token.
	Passphrase Secret `json:"passphrase"`
}

// GitHub contains remote repository API config.
type GitHub struct {
	// Endpoint contains API endpoint.
	Endpoint string `json:"endpoint"`
}

// LeetCode contains submission source config.
type LeetCode struct {
	// Endpoint contains GraphQL API endpoint.
	Endpoint string `json:"endpoint"`
	// Session contains optional session cookie for direct queries.
	Session *Secret `json:"session"`
}

// LoadFromFile loads configuration from json file.
func LoadFromFile(file string) (Config, error) {
	cfg := Config{LogLevel: 2}
	bytes, err := os.ReadFile(file)
	if err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal(bytes, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
