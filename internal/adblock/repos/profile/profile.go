// Package profile loads filter-configuration profiles from YAML, JSON, and TOML
// files and folds them into a single configuration patch.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"

	"github.com/haukened/rr-adblock/internal/adblock/domain"
)

// profileFile is the on-disk shape of a profile.
//
//	performance_mode: aggressive
//	whitelisted_domains: [example.com]
//	custom_rules: ["||ads.example^", "@@||cdn.example^"]
//	filter_lists:
//	  - name: easylist
//	    url: https://easylist.to/easylist/easylist.txt
type profileFile struct {
	IsEnabled          *bool         `koanf:"is_enabled"`
	PerformanceMode    string        `koanf:"performance_mode" validate:"omitempty,oneof=balanced aggressive minimal"`
	WhitelistedDomains []string      `koanf:"whitelisted_domains" validate:"omitempty,dive,fqdn"`
	CustomRules        []string      `koanf:"custom_rules" validate:"omitempty,dive,required"`
	FilterLists        []profileList `koanf:"filter_lists" validate:"omitempty,dive"`
}

type profileList struct {
	Name      string `koanf:"name" validate:"required"`
	URL       string `koanf:"url" validate:"required"`
	IsEnabled *bool  `koanf:"is_enabled"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadProfileDirectory walks dir in lexical order, loading every supported
// profile file and merging them into one patch. Later files override scalar
// settings of earlier ones; lists accumulate. Returns an error if any file
// fails to parse or validate.
func LoadProfileDirectory(dir string) (domain.FilterConfigPatch, error) {
	var merged domain.FilterConfigPatch

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		patch, ok, err := LoadProfileFile(path)
		if err != nil {
			return fmt.Errorf("error parsing profile %s: %w", path, err)
		}
		if ok {
			merged = merged.Merge(patch)
		}
		return nil
	})
	if err != nil {
		return domain.FilterConfigPatch{}, err
	}
	return merged, nil
}

// LoadProfileFile loads a single profile. ok is false for unsupported file types.
func LoadProfileFile(path string) (patch domain.FilterConfigPatch, ok bool, err error) {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	case ".toml":
		parser = toml.Parser()
	default:
		return domain.FilterConfigPatch{}, false, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return domain.FilterConfigPatch{}, true, fmt.Errorf("failed to load profile %s: %w", path, err)
	}

	var pf profileFile
	if err := k.Unmarshal("", &pf); err != nil {
		return domain.FilterConfigPatch{}, true, fmt.Errorf("failed to decode profile %s: %w", path, err)
	}
	if err := validate.Struct(pf); err != nil {
		return domain.FilterConfigPatch{}, true, fmt.Errorf("invalid profile %s: %w", path, err)
	}

	patch, err = pf.toPatch(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err != nil {
		return domain.FilterConfigPatch{}, true, fmt.Errorf("invalid profile %s: %w", path, err)
	}
	return patch, true, nil
}

// toPatch converts the file shape into a configuration patch. Rule IDs are
// derived from the profile name and the rule position.
func (pf profileFile) toPatch(name string) (domain.FilterConfigPatch, error) {
	patch := domain.FilterConfigPatch{IsEnabled: pf.IsEnabled}

	if pf.PerformanceMode != "" {
		mode, err := domain.ParsePerformanceMode(pf.PerformanceMode)
		if err != nil {
			return domain.FilterConfigPatch{}, err
		}
		patch.PerformanceMode = &mode
	}

	for _, d := range pf.WhitelistedDomains {
		patch.WhitelistedDomains = append(patch.WhitelistedDomains, strings.ToLower(strings.TrimSuffix(d, ".")))
	}

	for i, line := range pf.CustomRules {
		r, err := domain.NewFilterRule(fmt.Sprintf("%s:%d", name, i+1), line)
		if err != nil {
			return domain.FilterConfigPatch{}, fmt.Errorf("custom rule %d: %w", i+1, err)
		}
		patch.CustomRules = append(patch.CustomRules, r)
	}

	for _, l := range pf.FilterLists {
		enabled := true
		if l.IsEnabled != nil {
			enabled = *l.IsEnabled
		}
		patch.FilterLists = append(patch.FilterLists, domain.FilterList{
			ID:        name + ":" + l.Name,
			Name:      l.Name,
			URL:       l.URL,
			IsEnabled: enabled,
		})
	}
	return patch, nil
}
