// Package manifest handles lox.toml project configuration.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up by FindAndLoad.
const FileName = "lox.toml"

// Defaults applied to fields the manifest leaves empty.
const (
	DefaultPrompt = "> "
	DefaultAddr   = ":4567"
)

//go:embed schema.cue
var schemaSource string

// Manifest represents a lox.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Run     Run     `toml:"run"`
	REPL    REPL    `toml:"repl"`
	Server  Server  `toml:"server"`
	Log     Log     `toml:"log"`

	// Dir is the directory containing the lox.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

// Run configures script execution.
type Run struct {
	// Prelude scripts run, in order, before the entry script in the same
	// environment.
	Prelude []string `toml:"prelude"`
}

// REPL configures the interactive prompt.
type REPL struct {
	Prompt  string `toml:"prompt"`
	History string `toml:"history"` // transcript database; empty disables
}

// Server configures the evaluation service.
type Server struct {
	Addr string `toml:"addr"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no lox.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

// Parse decodes and validates manifest data. Dir is left empty.
func Parse(data []byte) (*Manifest, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if err := Validate(raw); err != nil {
		return nil, err
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	m.applyDefaults()
	return &m, nil
}

// Validate checks decoded manifest data against the embedded schema.
func Validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("manifest schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Manifest"))
	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	return nil
}

// Load parses a lox.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a lox.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) applyDefaults() {
	if m.REPL.Prompt == "" {
		m.REPL.Prompt = DefaultPrompt
	}
	if m.Server.Addr == "" {
		m.Server.Addr = DefaultAddr
	}
}

// resolve makes p absolute relative to the manifest directory.
func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// PreludePaths returns absolute paths for the configured prelude scripts.
func (m *Manifest) PreludePaths() []string {
	var paths []string
	for _, p := range m.Run.Prelude {
		paths = append(paths, m.resolve(p))
	}
	return paths
}

// EntryPath returns the absolute path of the entry script, or "".
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Project.Entry)
}

// HistoryPath returns the absolute path of the transcript database, or "".
func (m *Manifest) HistoryPath() string {
	return m.resolve(m.REPL.History)
}

// LogFilePath returns the absolute path of the log file, or "" for stderr.
func (m *Manifest) LogFilePath() string {
	return m.resolve(m.Log.File)
}
