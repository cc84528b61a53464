// SPDX-License-Identifier: AGPL-3.0-or-later

package configloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/exptrack-org/exptrack/internal/paths"
	"github.com/exptrack-org/exptrack/internal/types"
	"gopkg.in/yaml.v3"
)

const configFileName = "exptrack.yaml"

// Load reads exptrack.yaml. An explicit path wins; otherwise the current
// directory is tried, then the data directory. A missing file is not an
// error and yields an empty config.
func Load(explicit string) (*types.Config, error) {
	candidates := []string{}
	if strings.TrimSpace(explicit) != "" {
		candidates = append(candidates, explicit)
	} else {
		if cwd, err := os.Getwd(); err == nil {
			candidates = append(candidates, filepath.Join(cwd, configFileName))
		}
		candidates = append(candidates, paths.DataPath(configFileName))
	}

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			if os.IsNotExist(err) && explicit == "" {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", candidate, err)
		}
		var cfg types.Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", candidate, err)
		}
		if cfg.DataDir != "" {
			paths.SetDataDirOverride(cfg.DataDir)
		}
		return &cfg, nil
	}
	return &types.Config{}, nil
}
