package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

type SecretType string

const (
	DataSecret SecretType = "data"
	FileSecret SecretType = "file"
	EnvSecret  SecretType = "env"
)

// Secret stores configuration for secret value.
//
// Used for passing secret values to configs like passwords and
// tokens. A secret of type "data" holds the value as plain text,
// "file" loads it from the first line of a file and "env" reads it
// from an environment variable.
type Secret struct {
	Type  SecretType `json:"type"`
	Data  string     `json:"data"`
	mutex sync.Mutex
}

// Secret returns secret value.
func (s *Secret) Secret() (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	switch s.Type {
	case FileSecret:
		bytes, err := os.ReadFile(s.Data)
		if err != nil {
			return "", err
		}
		s.Data = strings.TrimRight(string(bytes), "\r\n")
		s.Type = DataSecret
	case EnvSecret:
		value, ok := os.LookupEnv(s.Data)
		if !ok {
			return "", fmt.Errorf(
				"environment variable %q does not exists", s.Data,
			)
		}
		s.Data, s.Type = value, DataSecret
	}
	if s.Type == DataSecret {
		return s.Data, nil
	}
	return "", fmt.Errorf("unsupported secret type %q", s.Type)
}
