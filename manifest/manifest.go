// Package manifest loads declarative registration manifests and applies them
// to a modreg.Registry.
//
// A manifest names modules through a Catalog:
//
//	capabilities: [store, cache]
//	defaults:
//	  resolver: auto        # auto | fail-fast
//	  duplicates: strict    # strict | permissive
//	modules:
//	  - name: service
//	  - name: clock
//	    resolver: fail-fast
//
// Load reads YAML or TOML files and then applies MODREG_ environment
// overrides, e.g. MODREG_DEFAULTS_RESOLVER=fail-fast.
package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/chenyanchen/modreg/internal/logging"
)

// EnvPrefix is the prefix of environment overrides read by Load.
const EnvPrefix = "MODREG_"

const (
	ResolverAuto     = "auto"
	ResolverFailFast = "fail-fast"

	DuplicatesStrict     = "strict"
	DuplicatesPermissive = "permissive"
)

type Manifest struct {
	Capabilities []string `koanf:"capabilities"`
	Defaults     Defaults `koanf:"defaults"`
	Modules      []Entry  `koanf:"modules"`
}

// Defaults are the policy names used by entries that set none.
type Defaults struct {
	Resolver   string `koanf:"resolver"`
	Duplicates string `koanf:"duplicates"`
}

type Entry struct {
	Name       string `koanf:"name"`
	Resolver   string `koanf:"resolver"`
	Duplicates string `koanf:"duplicates"`
}

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// Load reads the manifest at path. The parser is picked from the extension:
// .yaml, .yml or .toml.
func Load(path string) (*Manifest, error) {
	logger := logging.GetLogger("manifest")

	parser, err := parserFor(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", path, err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", path, err)
	}

	err = k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("load manifest env overrides: %w", err)
	}

	m, err := decode(k)
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", path, err)
	}
	logger.Debug().
		Str("path", path).
		Int("modules", len(m.Modules)).
		Strs("capabilities", m.Capabilities).
		Msg("Manifest loaded")
	return m, nil
}

// envKey maps MODREG_DEFAULTS_RESOLVER to defaults.resolver. Variables that
// do not name an overridable key are skipped.
func envKey(name string) string {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_", ".")
	switch key {
	case "capabilities", "defaults.resolver", "defaults.duplicates":
		return key
	default:
		return ""
	}
}

// Parse decodes an in-memory manifest. format is yaml, yml or toml.
// Environment overrides are not applied.
func Parse(data []byte, format string) (*Manifest, error) {
	parser, err := parserFor(format)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	k := koanf.New(".")
	if err := k.Load(&rawBytesProvider{bytes: data}, parser); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m, err := decode(k)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

func parserFor(format string) (koanf.Parser, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return yaml.Parser(), nil
	case "toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", format)
	}
}

func decode(k *koanf.Koanf) (*Manifest, error) {
	var m Manifest
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &m,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &m, unmarshalConf); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	for i := range m.Capabilities {
		m.Capabilities[i] = strings.TrimSpace(m.Capabilities[i])
	}
	return &m, nil
}
