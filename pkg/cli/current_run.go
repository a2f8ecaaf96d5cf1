package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/CAPHTECH/state-gate-sub000/pkg/constants"
	"github.com/CAPHTECH/state-gate-sub000/pkg/fileutil"
	"github.com/CAPHTECH/state-gate-sub000/pkg/runid"
)

// currentRun is the default-run pointer file: the run (and optionally the
// role) commands act on when --run/--role are not given.
type currentRun struct {
	RunID string `json:"run_id"`
	Role  string `json:"role,omitempty"`
}

func readCurrentRun(root string) (*currentRun, error) {
	data, err := os.ReadFile(constants.GetCurrentRunFile(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read current-run pointer: %w", err)
	}
	var c currentRun
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("current-run pointer is not valid JSON: %w", err)
	}
	if !runid.IsValid(c.RunID) {
		return nil, fmt.Errorf("current-run pointer holds invalid run id %q", c.RunID)
	}
	return &c, nil
}

func writeCurrentRun(root string, c currentRun) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal current-run pointer: %w", err)
	}
	data = append(data, '\n')
	return fileutil.WriteFileAtomic(constants.GetCurrentRunFile(root), data, 0o644)
}

// resolveRun picks the run a command acts on: the --run flag when given,
// the pointer file otherwise.
func resolveRun(runFlag string) (string, error) {
	if runFlag != "" {
		return runFlag, nil
	}
	c, err := readCurrentRun(dirFlag)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", fmt.Errorf("no run selected: pass --run or set one with 'state-gate use <run-id>'")
	}
	return c.RunID, nil
}

// resolveRole picks the caller role: the --role flag when given, the
// pointer file's role otherwise. An empty result is legal; permission
// checks will treat it as an unprivileged caller.
func resolveRole(roleFlag string) string {
	if roleFlag != "" {
		return roleFlag
	}
	c, err := readCurrentRun(dirFlag)
	if err != nil || c == nil {
		return ""
	}
	return c.Role
}

// parseKeyValues parses repeated key=value flags into a context map.
// Values are kept as strings; use the JSON flag for typed values.
func parseKeyValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", pair)
		}
		out[key] = value
	}
	return out, nil
}

// parseJSONObject parses a JSON object flag, rejecting non-object values.
func parseJSONObject(raw, flagName string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("--%s must be a JSON object: %w", flagName, err)
	}
	return out, nil
}
