// Package flagx contains helpers for command-line parsing shared by the
// client and server config layers. Both components read overlapping flag
// sets from the same argv, so each layer filters out the flags it owns
// before handing them to a flag.FlagSet.
package flagx

import (
	"strings"
)

// FilterArgs returns only the arguments that belong to the allowed flags,
// keeping flag values intact.
//
// Two argument forms are recognized:
//
//	-f value       (value as the following argument)
//	-f=value       (combined form, also --flag=value)
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, keep := allowed[name]; keep {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, keep := allowed[arg]; !keep {
			continue
		}
		filtered = append(filtered, arg)
		// A following non-flag argument is this flag's value.
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// JsonConfigFile extracts the value of the -c/-config flag from args, or ""
// if no config file was requested.
func JsonConfigFile(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if name, value, ok := strings.Cut(arg, "="); ok {
			if name == "-c" || name == "-config" || name == "--config" {
				return value
			}
			continue
		}
		if arg == "-c" || arg == "-config" || arg == "--config" {
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		}
	}
	return ""
}
