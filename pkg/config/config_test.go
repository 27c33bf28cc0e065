package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func TestParseKeepsDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "quill")
	s := &sample{Name: "default", Port: 80}
	if err := Parse([]byte("name: ${SAMPLE_NAME}\n"), s); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Name != "quill" || s.Port != 80 {
		t.Errorf("got %+v", s)
	}
}

func TestParseValidates(t *testing.T) {
	s := &sample{}
	err := Parse([]byte("port: 0\n"), s)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("err = %v, want validation failure", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := &sample{}
	err := Load(filepath.Join(t.TempDir(), "nope.yaml"), s)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not exist", err)
	}
}
