package config

import (
	"os"
	"testing"
)

func TestSecret_DataSecret(t *testing.T) {
	expectedValue := "Hello, World!"
	s := Secret{Type: DataSecret, Data: expectedValue}
	value, err := s.Secret()
	if err != nil {
		t.Error("Error: ", err)
	}
	if value != expectedValue {
		t.Errorf(
			"Expected '%s', but got '%s'",
			expectedValue, value,
		)
	}
}

func TestSecret_FileSecret(t *testing.T) {
	file, err := os.CreateTemp(os.TempDir(), "leetsync-test-")
	if err != nil {
		t.Error("Error: ", err)
	}
	expectedValue := "Hello, World!"
	_, err = file.Write([]byte(expectedValue + "\n"))
	_ = file.Close()
	defer func() {
		_ = os.Remove(file.Name())
	}()
	if err != nil {
		t.Error("Error: ", err)
	}
	s := Secret{Type: FileSecret, Data: file.Name()}
	value, err := s.Secret()
	if err != nil {
		t.Error("Error: ", err)
	}
	if value != expectedValue {
		t.Errorf(
			"Expected '%s', but got '%s'",
			expectedValue, value,
		)
	}
	s = Secret{Type: FileSecret, Data: file.Name() + "-invalid"}
	if _, err := s.Secret(); err == nil {
		t.Error("Expected error")
	}
}

func TestSecret_EnvSecret(t *testing.T) {
	name := "LEETSYNC_TEST_ENV_VAR"
	expectedValue := "Hello, World!"
	err := os.Setenv(name, expectedValue)
	if err != nil {
		t.Error("Error: ", err)
	}
	s := Secret{Type: EnvSecret, Data: name}
	value, err := s.Secret()
	if err != nil {
		t.Error("Error: ", err)
	}
	if value != expectedValue {
		t.Errorf(
			"Expected '%s', but got '%s'",
			expectedValue, value,
		)
	}
	s = Secret{Type: EnvSecret, Data: name + "_INVALID"}
	if _, err := s.Secret(); err == nil {
		t.Error("Expected error")
	}
}

func TestSecret_Unsupported(t *testing.T) {
	s := Secret{Type: "Unsupported", Data: "12345"}
	if _, err := s.Secret(); err == nil {
		t.Error("Expected error")
	}
}
