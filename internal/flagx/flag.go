// Package flagx lets several configuration layers read their own flags from
// the same command line without tripping over each other's definitions.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns only the allowed flags (and their values) from args.
// Both "-c conf.json" and "-c=conf.json" forms are recognised; a following
// token that starts with "-" is never taken as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// StringFlag looks up a single string flag registered under any of names
// (without the leading dash) in args. The last occurrence wins; def is
// returned when none is present.
func StringFlag(args []string, def string, names ...string) string {
	dashed := make([]string, 0, len(names))
	for _, n := range names {
		dashed = append(dashed, "-"+n, "--"+n)
	}

	value := def
	fs := flag.NewFlagSet("flagx", flag.ContinueOnError)
	fs.SetOutput(discard{})
	for _, n := range names {
		fs.StringVar(&value, n, def, "")
	}
	_ = fs.Parse(FilterArgs(args, dashed))
	return value
}

// JsonConfigFlags returns the config file path given via -c or -config, or
// an empty string.
func JsonConfigFlags() string {
	return StringFlag(os.Args[1:], "", "c", "config")
}

// EnvFileFlags returns the dotenv file path given via -env, defaulting to ".env".
func EnvFileFlags() string {
	return StringFlag(os.Args[1:], ".env", "env")
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
