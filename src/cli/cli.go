// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is prepended to the upper-cased flag name when reading
// environment variables: "read-timeout" is read from BEANS_READ_TIMEOUT.
const EnvPrefix = "BEANS_"

var (
	ErrHelp    = errors.New("cli: help requested")
	ErrVersion = errors.New("cli: version requested")
)

func exitOnError(msg string) {
	fmt.Fprintln(os.Stderr, "error:", msg)
	os.Exit(1)
}

func envName(name string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

type variable struct {
	name         string
	cliFlagNames []string

	preHook func(string) (string, error)

	value        interface{}
	valueDefault string
	required     bool
	usage        string
}

func (v *variable) matches(arg string) bool {
	for _, n := range v.cliFlagNames {
		if n == arg {
			return true
		}
	}
	return false
}

type CLI struct {
	version string

	// Out receives -help and -version output. Defaults to os.Stdout.
	Out io.Writer

	// Getenv is used to look up environment variables. Defaults to os.Getenv.
	Getenv func(string) string

	vars []variable
	set  map[string]struct{}
}

type FlagOptions struct {
	Required bool
	PreHook  func(string) (string, error)
	// Alias is an additional short flag name, e.g. "p" for "port".
	Alias string
}

func New(version string) *CLI {
	return &CLI{
		version: version,
		Out:     os.Stdout,
		Getenv:  os.Getenv,

		vars: []variable{},
		set:  map[string]struct{}{},
	}
}

func (c *CLI) addVar(name string, value interface{}, defValue string, usage string, opts *FlagOptions) {
	if name == "" {
		panic("cli: add variable: variable name could not be empty")
	}

	if usage == "" {
		panic("cli: flag \"" + name + "\" has empty \"usage\" field")
	}

	if opts == nil {
		opts = &FlagOptions{}
	}

	names := []string{"-" + name}
	if opts.Alias != "" {
		names = append(names, "-"+opts.Alias)
	}

	c.vars = append(c.vars, variable{
		name:         name,
		cliFlagNames: names,

		preHook: opts.PreHook,

		value:        value,
		valueDefault: defValue,
		required:     opts.Required,
		usage:        usage,
	})
}

func (c *CLI) AddStringVar(name, defValue string, usage string, opts *FlagOptions) *string {
	if opts != nil && opts.PreHook != nil {
		var err error
		defValue, err = opts.PreHook(defValue)
		if err != nil {
			panic("cli: add string variable \"" + name + "\": " + err.Error())
		}
	}

	val := &defValue
	c.addVar(name, val, defValue, usage, opts)
	return val
}

func (c *CLI) AddBoolVar(name string, usage string, opts *FlagOptions) *bool {
	valVar := false
	val := &valVar
	c.addVar(name, val, "", usage, opts)
	return val
}

func (c *CLI) AddIntVar(name string, defValue int, usage string, opts *FlagOptions) *int {
	val := &defValue
	c.addVar(name, val, strconv.Itoa(defValue), usage, opts)
	return val
}

func (c *CLI) AddInt64Var(name string, defValue int64, usage string, opts *FlagOptions) *int64 {
	val := &defValue
	c.addVar(name, val, strconv.FormatInt(defValue, 10), usage, opts)
	return val
}

// AddFileModeVar adds an octal permission flag such as "0600".
func (c *CLI) AddFileModeVar(name string, defValue os.FileMode, usage string, opts *FlagOptions) *os.FileMode {
	val := &defValue
	c.addVar(name, val, FormatFileMode(defValue), usage, opts)
	return val
}

func (c *CLI) AddDurationVar(name, defValue string, usage string, opts *FlagOptions) *time.Duration {
	if opts != nil && opts.PreHook != nil {
		var err error
		defValue, err = opts.PreHook(defValue)
		if err != nil {
			panic("cli: add duration variable \"" + name + "\": " + err.Error())
		}
	}

	valDuration, err := ParseDuration(defValue)
	if err != nil {
		panic("cli: add duration variable \"" + name + "\": " + err.Error())
	}

	val := &valDuration
	c.addVar(name, val, defValue, usage, opts)
	return val
}

// ParseFileMode parses an octal permission string. Only permission bits
// are accepted.
func ParseFileMode(s string) (os.FileMode, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 8, 32)
	if err != nil {
		return 0, errors.New("invalid file mode \"" + s + "\"")
	}
	if v&^uint64(os.ModePerm) != 0 {
		return 0, errors.New("file mode \"" + s + "\" out of range")
	}
	return os.FileMode(v), nil
}

func FormatFileMode(m os.FileMode) string {
	return fmt.Sprintf("%04o", uint32(m.Perm()))
}

func writeVar(val string, to interface{}, preHook func(string) (string, error)) error {
	if preHook != nil {
		var err error
		val, err = preHook(val)
		if err != nil {
			return err
		}
	}

	switch to := to.(type) {
	case *string:
		*to = val

	case *int:
		val, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		*to = val

	case *int64:
		val, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return err
		}
		*to = val

	case *bool:
		*to = true

	case *os.FileMode:
		val, err := ParseFileMode(val)
		if err != nil {
			return err
		}
		*to = val

	case *time.Duration:
		val, err := ParseDuration(val)
		if err != nil {
			return err
		}
		*to = val

	default:
		panic("cli: write variable: unknown \"to\" argument type")
	}

	return nil
}

// IsSet reports whether the variable was given on the command line or
// through the environment.
func (c *CLI) IsSet(name string) bool {
	_, ok := c.set[name]
	return ok
}

func (c *CLI) PrintVersion() {
	fmt.Fprintln(c.Out, c.version)
}

func (c *CLI) PrintHelp() {
	// Search for the longest flag and required flags list.
	var maxFlagSize int
	var reqFlags string

	flagNames := make([]string, len(c.vars))
	for i, v := range c.vars {
		flagNames[i] = strings.Join(v.cliFlagNames, ", ")
		if len(flagNames[i]) > maxFlagSize {
			maxFlagSize = len(flagNames[i])
		}

		if v.required {
			reqFlags += "[" + v.cliFlagNames[0] + "] "
		}
	}

	fmt.Fprintln(c.Out, "Usage:", os.Args[0], reqFlags+"[OPTION]...")
	fmt.Fprintln(c.Out, "")

	for i, v := range c.vars {
		spaces := strings.Repeat(" ", maxFlagSize-len(flagNames[i])+2)

		var defaultStr string
		if v.valueDefault != "" {
			defaultStr = " (default: " + v.valueDefault + ")"
		}

		fmt.Fprintln(c.Out, " ", flagNames[i], spaces, v.usage+defaultStr)
	}

	fmt.Fprintln(c.Out)
	fmt.Fprintln(c.Out, "  -version, -v   Display version and exit.")
	fmt.Fprintln(c.Out, "  -help          Display this help and exit.")
	fmt.Fprintln(c.Out)
	fmt.Fprintln(c.Out, "Every flag can also be set with "+EnvPrefix+"<NAME>, e.g. "+envName("read-timeout")+".")
}

// normalizeFlag converts --flag to -flag
func normalizeFlag(arg string) string {
	if strings.HasPrefix(arg, "--") {
		return strings.TrimPrefix(arg, "-")
	}
	return arg
}

// ParseArgs reads environment variables first, then args (which override
// them). It returns ErrHelp or ErrVersion when those flags are seen.
func (c *CLI) ParseArgs(args []string) error {
	// Environment variables
	for i := range c.vars {
		v := &c.vars[i]
		envVal := c.Getenv(envName(v.name))
		if envVal == "" {
			continue
		}
		if err := writeVar(envVal, v.value, v.preHook); err != nil {
			return errors.New("read environment variable \"" + envName(v.name) + "\": " + err.Error())
		}
		c.set[v.name] = struct{}{}
	}

	// CLI flags
	alreadyRead := make(map[string]struct{})

	var varInProgress *variable
	for _, arg := range args {
		if varInProgress != nil {
			err := writeVar(arg, varInProgress.value, varInProgress.preHook)
			if err != nil {
				return errors.New("read \"" + varInProgress.cliFlagNames[0] + "\" flag: " + err.Error())
			}

			varInProgress = nil
			continue
		}

		normalizedArg := normalizeFlag(arg)

		switch normalizedArg {
		case "-version", "-v":
			return ErrVersion

		case "-help", "-h":
			return ErrHelp
		}

		var found *variable
		for i := range c.vars {
			if c.vars[i].matches(normalizedArg) {
				found = &c.vars[i]
				break
			}
		}

		if found == nil {
			return errors.New("unknown flag \"" + arg + "\"")
		}

		if _, exist := alreadyRead[found.name]; exist {
			return errors.New("flag \"" + normalizedArg + "\" occurs twice")
		}
		alreadyRead[found.name] = struct{}{}
		c.set[found.name] = struct{}{}

		if b, ok := found.value.(*bool); ok {
			*b = true
			continue
		}
		varInProgress = found
	}

	if varInProgress != nil {
		return errors.New("no value for \"" + varInProgress.cliFlagNames[0] + "\" flag")
	}

	// Check required variables
	for _, v := range c.vars {
		if v.required && !c.IsSet(v.name) {
			return errors.New("\"" + v.cliFlagNames[0] + "\" flag is missing")
		}
	}

	return nil
}

// Parse parses os.Args. It prints help or version and exits 0 when asked
// to, and exits 1 on any flag error.
func (c *CLI) Parse() {
	err := c.ParseArgs(os.Args[1:])
	switch {
	case err == nil:
		return

	case errors.Is(err, ErrVersion):
		c.PrintVersion()
		os.Exit(0)

	case errors.Is(err, ErrHelp):
		c.PrintHelp()
		os.Exit(0)

	default:
		exitOnError(err.Error())
	}
}
