package access

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// fileConfig — формат файла профилей прав:
//
//	default_profile: full
//	profiles:
//	  sales:
//	    order: [read, update]
//	    order_line: [read, create, update]
type fileConfig struct {
	DefaultProfile string                         `yaml:"default_profile"`
	Profiles       map[string]map[string][]string `yaml:"profiles"`
}

// Registry хранит профили по имени.
type Registry struct {
	defaultName string
	profiles    map[string]Profile
}

// DefaultRegistry содержит встроенные профили full и readonly; по умолчанию full.
func DefaultRegistry() *Registry {
	return &Registry{
		defaultName: ProfileFull,
		profiles: map[string]Profile{
			ProfileFull:     FullProfile(),
			ProfileReadOnly: ReadOnlyProfile(),
		},
	}
}

// Lookup ищет профиль по имени.
func (r *Registry) Lookup(name string) (Profile, bool) {
	p, ok := r.profiles[name]
	return p, ok
}

// Default возвращает профиль по умолчанию.
func (r *Registry) Default() Profile {
	return r.profiles[r.defaultName]
}

// Names возвращает имена профилей по алфавиту.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithDefault меняет профиль по умолчанию.
func (r *Registry) WithDefault(name string) error {
	if _, ok := r.profiles[name]; !ok {
		return fmt.Errorf("unknown permission profile %q", name)
	}
	r.defaultName = name
	return nil
}

// LoadFile читает профили из YAML. Если файла нет, возвращает DefaultRegistry.
// Профили из файла дополняют встроенные и могут их переопределить.
func LoadFile(path string) (*Registry, error) {
	registry := DefaultRegistry()
	if path == "" {
		return registry, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return registry, nil
		}
		return nil, fmt.Errorf("read permissions file: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML-описание профилей.
func Parse(data []byte) (*Registry, error) {
	registry := DefaultRegistry()

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing permissions: %w", err)
	}

	for name, rawGrants := range cfg.Profiles {
		grants := make(map[domain.RecordKind][]domain.Action, len(rawGrants))
		for rawKind, rawActions := range rawGrants {
			kind := domain.RecordKind(rawKind)
			if !validKind(kind) {
				return nil, fmt.Errorf("profile %q: unknown record kind %q", name, rawKind)
			}
			actions := make([]domain.Action, 0, len(rawActions))
			for _, rawAction := range rawActions {
				action := domain.Action(rawAction)
				if !validAction(action) {
					return nil, fmt.Errorf("profile %q: unknown action %q for %s", name, rawAction, rawKind)
				}
				actions = append(actions, action)
			}
			grants[kind] = actions
		}
		registry.profiles[name] = NewProfile(name, grants)
	}

	if cfg.DefaultProfile != "" {
		if err := registry.WithDefault(cfg.DefaultProfile); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
