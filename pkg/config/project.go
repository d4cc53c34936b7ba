package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"
	"tlog.app/go/errors"
)

// ProjectFileName is looked up next to the input file when no --config is given.
const ProjectFileName = "truffle.toml"

type tomlProjectFile struct {
	Project  *tomlProject    `toml:"project"`
	Features map[string]bool `toml:"features,omitempty"`
	Warnings map[string]bool `toml:"warnings,omitempty"`
}

type tomlProject struct {
	Name    string   `toml:"name"`
	Entry   string   `toml:"entry,omitempty"`
	Backend string   `toml:"backend,omitempty"`
	Target  string   `toml:"target,omitempty"`
	Externs []string `toml:"externs,omitempty"`
}

// FindProject returns the project file that sits in dir, or "" if there is none.
func FindProject(dir string) string {
	path := filepath.Join(dir, ProjectFileName)
	if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
		return path
	}
	return ""
}

// LoadProject reads a project file and applies it on top of the current settings.
func (c *Config) LoadProject(path string) error {
	buff, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read project file")
	}
	return c.ApplyProject(buff)
}

// ApplyProject applies the TOML encoded project description in buff.
func (c *Config) ApplyProject(buff []byte) error {
	tpf := &tomlProjectFile{}
	if err := toml.Unmarshal(buff, tpf); err != nil {
		return errors.Wrap(err, "decode project file")
	}

	if p := tpf.Project; p != nil {
		if p.Name != "" {
			c.ModuleName = p.Name
		}
		if p.Entry != "" {
			c.EntryName = p.Entry
		}
		if p.Backend != "" {
			if err := c.SetBackend(p.Backend); err != nil {
				return err
			}
		}
		if p.Target != "" {
			c.QbeTarget = p.Target
		}
		c.AddExterns(p.Externs...)
	}

	for name, on := range tpf.Features {
		ft, ok := c.FeatureMap[name]
		if !ok {
			return errors.New("unknown feature %q in project file", name)
		}
		c.SetFeature(ft, on)
	}
	for name, on := range tpf.Warnings {
		wt, ok := c.WarningMap[name]
		if !ok {
			return errors.New("unknown warning %q in project file", name)
		}
		c.SetWarning(wt, on)
	}
	return nil
}
