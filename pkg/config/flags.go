package config

import "github.com/truffle-lang/truffle/pkg/cli"

// FlagGroups holds the -W and -F entries registered on a flag set.
type FlagGroups struct {
	Warnings []cli.FlagGroupEntry
	Features []cli.FlagGroupEntry
}

// SetupFlagGroups registers one enable/disable pair per warning and feature.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) *FlagGroups {
	g := &FlagGroups{}

	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		g.Warnings = append(g.Warnings, cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "W",
			Usage:    info.Description,
			Enabled:  new(bool),
			Disabled: new(bool),
			Default:  info.Enabled,
		})
	}
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		g.Features = append(g.Features, cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "F",
			Usage:    info.Description,
			Enabled:  new(bool),
			Disabled: new(bool),
			Default:  info.Enabled,
		})
	}

	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning", "Available Warnings:", g.Warnings)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific features", "feature", "Available Features:", g.Features)
	return g
}

// Apply copies the parsed group flags into the configuration. Explicit
// disables win over enables given for the same name.
func (g *FlagGroups) Apply(c *Config) {
	for i, entry := range g.Warnings {
		if *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range g.Features {
		if *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}
