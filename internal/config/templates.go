package config

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/charmbracelet/log"
)

//go:embed templates/sentinel.toml.tmpl
var templateFS embed.FS

const templatePath = "templates/sentinel.toml.tmpl"

// ErrConfigExists is returned by WriteTemplate when the target file exists
// and force is false.
var ErrConfigExists = fmt.Errorf("%s already exists", ConfigFileName)

// RenderTemplate renders the commented sentinel.toml starter file with the
// values of cfg. A nil cfg renders the built-in defaults.
func RenderTemplate(cfg *Config) ([]byte, error) {
	if cfg == nil {
		cfg = NewDefaults()
	}
	content, err := templateFS.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("reading embedded template: %w", err)
	}
	tmpl, err := template.New(ConfigFileName).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteTemplate writes a starter sentinel.toml into dir and returns its path.
// An existing file is only overwritten when force is true.
func WriteTemplate(dir string, force bool) (string, error) {
	dest := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(dest); err == nil {
		if !force {
			return dest, ErrConfigExists
		}
		log.Debug("overwriting existing file", "path", dest)
	}

	out, err := RenderTemplate(nil)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}
	if err := os.WriteFile(dest, out, 0o600); err != nil {
		return "", fmt.Errorf("writing file %s: %w", dest, err)
	}
	log.Debug("created config file", "path", dest)
	return dest, nil
}
