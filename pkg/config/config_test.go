package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Extra string `yaml:"extra"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "book")
	p := writeFile(t, "name: ${SAMPLE_NAME}\nport: 9000\n")

	s := sample{Extra: "kept"}
	if err := Load(p, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "book" || s.Port != 9000 || s.Extra != "kept" {
		t.Errorf("loaded = %+v", s)
	}
}

func TestLoad_ValidationFails(t *testing.T) {
	p := writeFile(t, "port: 0\n")
	s := sample{}
	err := Load(p, &s)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoad_ParseError(t *testing.T) {
	p := writeFile(t, "port: [\n")
	if err := Load(p, &sample{Port: 1}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadWithDefaults_MissingFileUsesDefaults(t *testing.T) {
	s := sample{Port: 8080}
	read, err := LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yaml"), &s)
	if err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if read || s.Port != 8080 {
		t.Errorf("read = %v, port = %d", read, s.Port)
	}

	if _, err := LoadWithDefaults("", &sample{}); err == nil {
		t.Error("invalid defaults should still be rejected")
	}
}

func TestLoadWithDefaults_ExistingFile(t *testing.T) {
	p := writeFile(t, "port: 7000\n")
	s := sample{Port: 8080}
	read, err := LoadWithDefaults(p, &s)
	if err != nil || !read || s.Port != 7000 {
		t.Fatalf("read = %v, port = %d, err = %v", read, s.Port, err)
	}
}
