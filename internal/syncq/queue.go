// Package syncq is the CLI's offline command queue. Decisions, advances
// and event responses made while the API is unreachable are stored here
// and replayed through /v1/sync/replay once connectivity returns. Each
// command carries its idempotency key, so replaying twice is harmless.
package syncq

import (
	"encoding/json"
	"os"
	"path/filepath"
)

type Command struct {
	Op             string             `json:"op"`
	GameID         string             `json:"game_id"`
	DecisionID     string             `json:"decision_id,omitempty"`
	Params         map[string]float64 `json:"params,omitempty"`
	InstanceID     string             `json:"instance_id,omitempty"`
	ResponseID     string             `json:"response_id,omitempty"`
	IdempotencyKey string             `json:"idempotency_key"`
}

func queuePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".firma")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "queue.json"), nil
}

func Load() ([]Command, error) {
	path, err := queuePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Command{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Command{}, nil
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func Save(commands []Command) error {
	path, err := queuePath()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func Push(cmd Command) error {
	commands, err := Load()
	if err != nil {
		return err
	}
	commands = append(commands, cmd)
	return Save(commands)
}

// Clear removes the queue file after a successful replay.
func Clear() error {
	path, err := queuePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return os.Remove(path)
}
