package hostagent

import (
	"fmt"
	"os"
	"strings"

	marketlens "github.com/marketlens/marketlens/internal"
	"github.com/marketlens/marketlens/internal/discovery"
)

const embeddedEnvKey = "MARKETLENS_EMBEDDED"

// writeEnvFile rewrites the agent's env file with the current backend
// ports, so clients without bridge access can still resolve them. Lines
// unrelated to marketlens are preserved; stale port entries are dropped.
func writeEnvFile(path string, configs []marketlens.BackendDescriptor) error {
	var kept []string
	if existing, err := os.ReadFile(path); err == nil {
		for _, line := range strings.Split(string(existing), "\n") {
			if line == "" || isOwnedLine(line) {
				continue
			}
			kept = append(kept, line)
		}
	}

	kept = append(kept, embeddedEnvKey+"=true")
	for _, c := range configs {
		key := discovery.EnvPortPrefix + strings.ToUpper(c.ExchangeID) + "_PORT"
		kept = append(kept, key+"="+c.Port)
	}

	content := strings.Join(kept, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return nil
}

// isOwnedLine reports whether a line was written by the agent and should
// be replaced on the next write.
func isOwnedLine(line string) bool {
	if strings.HasPrefix(line, embeddedEnvKey+"=") {
		return true
	}
	return strings.HasPrefix(line, discovery.EnvPortPrefix) &&
		strings.Contains(line, "_PORT=")
}
