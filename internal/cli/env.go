package cli

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFileOverrideVar names a variable that, when set, wins over the --env flag.
const EnvFileOverrideVar = "BDRADAR_ENV_FILE"

// EnvLoader loads the first readable .env file out of the override variable,
// the --env flag, the flag's basename and the default path.
type EnvLoader struct {
	flagValue   *string
	defaultPath string
}

// AddEnvFlag registers --env on fs (the process flag set when nil).
func AddEnvFlag(fs *flag.FlagSet, defaultPath, usage string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if usage == "" {
		usage = "Path to the .env file"
	}
	return &EnvLoader{
		flagValue:   fs.String("env", defaultPath, usage),
		defaultPath: defaultPath,
	}
}

type envCandidate struct {
	path   string
	origin string
}

func (l *EnvLoader) candidates() []envCandidate {
	out := make([]envCandidate, 0, 4)
	if override := strings.TrimSpace(os.Getenv(EnvFileOverrideVar)); override != "" {
		out = append(out, envCandidate{path: override, origin: EnvFileOverrideVar})
	}

	requested := l.defaultPath
	if l.flagValue != nil {
		if v := strings.TrimSpace(*l.flagValue); v != "" {
			requested = v
		}
	}
	out = append(out, envCandidate{path: requested, origin: "--env"})
	if base := filepath.Base(requested); base != requested {
		out = append(out, envCandidate{path: base, origin: "basename of --env"})
	}
	if requested != l.defaultPath {
		out = append(out, envCandidate{path: l.defaultPath, origin: "default"})
	}
	return out
}

// Load overlays the process environment with the first candidate file that
// parses and returns its path. Variables from the file replace existing ones.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", errors.New("env loader is nil")
	}
	log.SetOutput(os.Stderr)

	tried := make([]string, 0, 4)
	for _, c := range l.candidates() {
		if err := godotenv.Overload(c.path); err != nil {
			if c.origin == EnvFileOverrideVar {
				log.Printf("Warning: failed to load %s=%s", EnvFileOverrideVar, c.path)
			}
			tried = append(tried, c.path)
			continue
		}
		log.Printf("Loaded environment from %s (%s)", c.path, c.origin)
		return c.path, nil
	}
	return "", fmt.Errorf("no env file could be loaded (tried %s)", strings.Join(tried, ", "))
}
