/*
	This file holds the Command type used by the CLI and the RPC service to name a
	script, its positional arguments and its "key=value" settings.
*/

package omero

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is a command line split into words.  The first item is the name of
// a script or a built-in command like "help".  The other arguments are positional
// arguments or optional settings of the form "<key>=<value>".
type Command []string

// String returns a space-separated command line
func (cmd Command) String() string {
	return strings.Join([]string(cmd), " ")
}

// Name returns the first argument which is assumed to be the name of the command.
func (cmd Command) Name() string {
	if len(cmd) == 0 {
		return ""
	}
	return cmd[0]
}

func splitSetting(arg string) (key, value string, ok bool) {
	pos := strings.Index(arg, "=")
	if pos <= 0 {
		return "", "", false
	}
	return arg[:pos], arg[pos+1:], true
}

// Parameter scans a command for any "key=value" argument and returns
// the value of the passed 'key'.
func (cmd Command) Parameter(key string) (value string, found bool) {
	if len(cmd) > 1 {
		for _, arg := range cmd[1:] {
			k, v, ok := splitSetting(arg)
			if ok && k == key {
				return v, true
			}
		}
	}
	return
}

// Settings returns all "key=value" arguments as a map.
func (cmd Command) Settings() map[string]string {
	settings := make(map[string]string)
	if len(cmd) > 1 {
		for _, arg := range cmd[1:] {
			if k, v, ok := splitSetting(arg); ok {
				settings[k] = v
			}
		}
	}
	return settings
}

// IntParameter returns an integer setting or the given default if absent.
func (cmd Command) IntParameter(key string, def int) (int, error) {
	s, found := cmd.Parameter(key)
	if !found || s == "" {
		return def, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def, fmt.Errorf("setting %q must be an integer, got %q", key, s)
	}
	return i, nil
}

// BoolParameter returns a boolean setting or the given default if absent.
func (cmd Command) BoolParameter(key string, def bool) (bool, error) {
	s, found := cmd.Parameter(key)
	if !found || s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def, fmt.Errorf("setting %q must be true or false, got %q", key, s)
	}
	return b, nil
}

// CommandArgs sets a variadic argument set of string pointers to positional
// command arguments, ignoring setting arguments of the form "<key>=<value>".
// If there aren't enough arguments to set a target, the target is set to the
// empty string.  It returns an 'overflow' slice that has all arguments
// beyond those needed for targets.
func (cmd Command) CommandArgs(targets ...*string) (overflow []string) {
	return getArgs(cmd, 1, targets...)
}

func getArgs(cmd Command, startPos int, targets ...*string) (overflow []string) {
	overflow = make([]string, 0, len(cmd))
	for _, target := range targets {
		*target = ""
	}
	if len(cmd) > startPos {
		numTargets := len(targets)
		curTarget := 0
		for _, arg := range cmd[startPos:] {
			if _, _, isSetting := splitSetting(arg); isSetting {
				continue
			}
			if curTarget >= numTargets {
				overflow = append(overflow, arg)
			} else {
				*(targets[curTarget]) = arg
			}
			curTarget++
		}
	}
	return
}

// ParseIDs parses a list of ids separated by commas and/or spaces, e.g. "1,2, 3".
func ParseIDs(s string) ([]int64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %v", f, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseInts parses a comma-separated list of integers.
func ParseInts(s string) ([]int, error) {
	ids, err := ParseIDs(s)
	if err != nil {
		return nil, err
	}
	ints := make([]int, len(ids))
	for i, id := range ids {
		ints[i] = int(id)
	}
	return ints, nil
}

// Range is an inclusive range of integers given as "first-last" or a single "n".
type Range struct {
	First, Last int
}

// ParseRange parses "1-40" or "7" into a Range.
func ParseRange(s string) (Range, error) {
	parts := strings.SplitN(s, "-", 2)
	first, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Range{}, fmt.Errorf("bad range %q", s)
	}
	if len(parts) == 1 {
		return Range{first, first}, nil
	}
	last, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || last < first {
		return Range{}, fmt.Errorf("bad range %q", s)
	}
	return Range{first, last}, nil
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.First, r.Last)
}
