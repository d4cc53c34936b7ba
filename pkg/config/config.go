package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"modernc.org/libqbe"
)

type Feature int

const (
	FeatStdPrecedence Feature = iota
	FeatParenExprs
	FeatCallExprs
	FeatShortDecl
	FeatLineComments
	FeatStrictTypes
	FeatUnaryMinus
	FeatCount
)

type Warning int

const (
	WarnUninitialized Warning = iota
	WarnSyntax
	WarnImplicitDecl
	WarnType
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

const (
	BackendLLVM  = "llvm"
	BackendQBE   = "qbe"
	BackendTrace = "trace"
)

// Intrinsic is the one function every compilation unit can call without declaring it.
const Intrinsic = "print"

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning

	Backend    string
	ModuleName string
	EntryName  string
	Externs    []string

	TargetArch string
	QbeTarget  string
	WordSize   int
	WordType   string

	Verbose bool
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		Backend:    BackendLLVM,
		ModuleName: "truffle_main",
		EntryName:  "main",
	}

	features := map[Feature]Info{
		FeatStdPrecedence: {"std-precedence", true, "Split expressions at the loosest-binding operator (`1 + 2 * 3` is `1 + (2 * 3)`)."},
		FeatParenExprs:    {"paren-exprs", true, "Allow parenthesised sub-expressions."},
		FeatCallExprs:     {"call-exprs", true, "Allow function calls as expression operands."},
		FeatShortDecl:     {"short-decl", false, "Allow inferred declarations `name := expr`."},
		FeatLineComments:  {"line-comments", true, "Recognize '//' line comments."},
		FeatStrictTypes:   {"strict-types", false, "Reject declarations whose initializer type differs from the declared type."},
		FeatUnaryMinus:    {"unary-minus", true, "Allow a leading `-` to negate an expression operand."},
	}

	warnings := map[Warning]Info{
		WarnUninitialized: {"uninitialized", true, "Warn when an identifier is used before it is declared."},
		WarnSyntax:        {"syntax", true, "Report unbalanced brackets and malformed ranges found while lexing."},
		WarnImplicitDecl:  {"implicit-decl", true, "Warn when a call target is declared implicitly as an external function."},
		WarnType:          {"type", false, "Warn about implicit conversions when storing values."},
		WarnExtra:         {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget configures the QBE target used when assembling QBE output.
func (c *Config) SetTarget(goos, goarch, qbeTarget string) {
	if qbeTarget == "" {
		c.QbeTarget = libqbe.DefaultTarget(goos, goarch)
		c.infof("no target specified, defaulting to host target '%s'", c.QbeTarget)
	} else {
		c.QbeTarget = qbeTarget
		c.infof("using specified target '%s'", c.QbeTarget)
	}

	c.TargetArch = goarch

	switch c.QbeTarget {
	case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
		c.WordSize, c.WordType = 8, "l"
	case "arm", "rv32":
		c.WordSize, c.WordType = 4, "w"
	default:
		fmt.Fprintf(os.Stderr, "truffle: warning: unrecognized or unsupported QBE target '%s', defaulting to 64-bit properties\n", c.QbeTarget)
		c.WordSize, c.WordType = 8, "l"
	}
}

func (c *Config) infof(format string, args ...any) {
	if c.Verbose {
		fmt.Fprintf(os.Stderr, "truffle: info: "+format+"\n", args...)
	}
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// SetBackend selects the code generation backend by name.
func (c *Config) SetBackend(name string) error {
	switch name {
	case BackendLLVM, BackendQBE, BackendTrace:
		c.Backend = name
		return nil
	}
	return fmt.Errorf("unsupported backend '%s'. Supported: '%s', '%s', '%s'", name, BackendLLVM, BackendQBE, BackendTrace)
}

// AddExterns registers names of external functions, skipping duplicates.
func (c *Config) AddExterns(names ...string) {
	seen := make(map[string]bool, len(c.Externs))
	for _, n := range c.Externs {
		seen[n] = true
	}
	for _, n := range names {
		if n == "" || seen[n] || n == Intrinsic {
			continue
		}
		seen[n] = true
		c.Externs = append(c.Externs, n)
	}
}

// ApplyFlag applies a single -W<name>, -Wno-<name>, -F<name> or -Fno-<name> flag.
func (c *Config) ApplyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")

	var isWarning bool
	switch {
	case strings.HasPrefix(trimmed, "W"):
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
	default:
		return fmt.Errorf("unknown flag '%s'", flag)
	}
	name := trimmed[1:]
	enable := !strings.HasPrefix(name, "no-")
	name = strings.TrimPrefix(name, "no-")

	if isWarning && name == "all" {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return nil
	}

	if isWarning {
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(w, enable)
		return nil
	}
	f, ok := c.FeatureMap[name]
	if !ok {
		return fmt.Errorf("unknown feature '%s'", name)
	}
	c.SetFeature(f, enable)
	return nil
}

// EnabledNames lists the enabled features and warnings, sorted, for verbose output.
func (c *Config) EnabledNames() (features, warnings []string) {
	for _, info := range c.Features {
		if info.Enabled {
			features = append(features, info.Name)
		}
	}
	for _, info := range c.Warnings {
		if info.Enabled {
			warnings = append(warnings, info.Name)
		}
	}
	sort.Strings(features)
	sort.Strings(warnings)
	return features, warnings
}
