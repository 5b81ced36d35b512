package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Top-level YAML config key names used for shallow merge.
const (
	keySource    = "source"
	keyDispatch  = "dispatch"
	keyBackend   = "backend"
	keyArtifacts = "artifacts"
	keyProgress  = "progress"
	keyLogging   = "logging"
)

// knownTopLevelKeys lists the YAML keys that correspond to exported Config fields.
// Keys not in this list are silently ignored during merge.
//
//nolint:gochecknoglobals // Compile-time constant lookup table.
var knownTopLevelKeys = map[string]bool{
	keySource:    true,
	keyDispatch:  true,
	keyBackend:   true,
	keyArtifacts: true,
	keyProgress:  true,
	keyLogging:   true,
}

// ShallowMergeYAML loads a YAML file and merges its top-level keys onto
// the target Config. Within a section, keys present in the overlay replace
// the target's values and absent keys keep their current value.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading overlay file %s: %w", overlayPath, err)
	}

	var overlay map[string]interface{}
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing overlay YAML from %s: %w", overlayPath, err)
	}

	// Empty or comment-only file: nothing to merge.
	if len(overlay) == 0 {
		return nil
	}

	for key, value := range overlay {
		if !knownTopLevelKeys[key] {
			continue
		}

		// Re-marshal the single section so we can unmarshal it onto the
		// strongly-typed target field.
		sectionBytes, marshalErr := yaml.Marshal(value)
		if marshalErr != nil {
			return fmt.Errorf("re-marshalling overlay section %q: %w", key, marshalErr)
		}

		if err = unmarshalSection(target, key, sectionBytes); err != nil {
			return fmt.Errorf("applying overlay section %q: %w", key, err)
		}
	}

	return nil
}

// unmarshalSection decodes raw YAML bytes onto the matching field of target.
// Decoding happens on top of the current value so that defaults survive for
// keys the overlay omits; slices present in the overlay replace the default.
func unmarshalSection(target *Config, key string, data []byte) error {
	switch key {
	case keySource:
		return yaml.Unmarshal(data, &target.Source)
	case keyDispatch:
		return yaml.Unmarshal(data, &target.Dispatch)
	case keyBackend:
		v := target.Backend
		v.Args, v.VersionArgs = nil, nil
		if err := yaml.Unmarshal(data, &v); err != nil {
			return err
		}
		if v.Args == nil {
			v.Args = target.Backend.Args
		}
		if v.VersionArgs == nil {
			v.VersionArgs = target.Backend.VersionArgs
		}
		target.Backend = v
		return nil
	case keyArtifacts:
		return yaml.Unmarshal(data, &target.Artifacts)
	case keyProgress:
		return yaml.Unmarshal(data, &target.Progress)
	case keyLogging:
		return yaml.Unmarshal(data, &target.Logging)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}
