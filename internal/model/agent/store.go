package agent

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store exposes agent profile retrieval for handlers and the session controller.
type Store interface {
	List() []Profile
	FindByID(id string) (Profile, bool)
	Default() Profile
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Profile
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied profiles.
func NewMemoryStore(items []Profile) *MemoryStore {
	return &MemoryStore{items: append([]Profile(nil), items...)}
}

// List returns the configured profiles.
func (s *MemoryStore) List() []Profile {
	return append([]Profile(nil), s.items...)
}

// FindByID looks up a profile by identifier. An empty id resolves to the default profile.
func (s *MemoryStore) FindByID(id string) (Profile, bool) {
	if strings.TrimSpace(id) == "" {
		if len(s.items) == 0 {
			return Profile{}, false
		}
		return s.items[0], true
	}
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Profile{}, false
}

// Default returns the first profile, or the zero value when the store is empty.
func (s *MemoryStore) Default() Profile {
	if len(s.items) == 0 {
		return Profile{}
	}
	return s.items[0]
}

type profileFile struct {
	Agents []Profile `yaml:"agents"`
}

// LoadFile 从 YAML 文件加载 agent 配置，路径为空时返回内置配置
func LoadFile(path string) ([]Profile, error) {
	if strings.TrimSpace(path) == "" {
		return Seed(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent profiles %s: %w", path, err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse agent profiles %s: %w", path, err)
	}
	if len(file.Agents) == 0 {
		return nil, fmt.Errorf("agent profiles %s: no agents defined", path)
	}

	for i, p := range file.Agents {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("agent profiles %s: entry %d is missing id", path, i)
		}
		if strings.TrimSpace(p.Name) == "" {
			file.Agents[i].Name = p.ID
		}
	}

	return file.Agents, nil
}
