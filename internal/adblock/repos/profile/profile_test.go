package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-adblock/internal/adblock/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadProfileDirectory_MergesAllFormats(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "10-base.yaml", `
performance_mode: aggressive
is_enabled: true
whitelisted_domains:
  - Example.com
custom_rules:
  - "||ads.example^"
  - "@@||cdn.example^"
filter_lists:
  - name: easylist
    url: https://easylist.to/easylist/easylist.txt
`)
	writeFile(t, dir, "20-extra.json", `{"performance_mode":"minimal","whitelisted_domains":["news.example"],"custom_rules":["/ads/*"]}`)
	writeFile(t, dir, "30-lists.toml", `
[[filter_lists]]
name = "local"
url = "/etc/rr-adblock/local.txt"
is_enabled = false
`)
	writeFile(t, dir, "README.md", "not a profile")

	patch, err := LoadProfileDirectory(dir)
	require.NoError(t, err)

	require.NotNil(t, patch.PerformanceMode)
	assert.Equal(t, domain.PerformanceMinimal, *patch.PerformanceMode)
	require.NotNil(t, patch.IsEnabled)
	assert.True(t, *patch.IsEnabled)
	assert.Equal(t, []string{"example.com", "news.example"}, patch.WhitelistedDomains)

	require.Len(t, patch.CustomRules, 3)
	assert.Equal(t, "10-base:1", patch.CustomRules[0].ID)
	assert.Equal(t, domain.RuleTypeBlock, patch.CustomRules[0].Type)
	assert.Equal(t, "||cdn.example^", patch.CustomRules[1].Pattern)
	assert.Equal(t, domain.RuleTypeAllow, patch.CustomRules[1].Type)
	assert.Equal(t, "20-extra:1", patch.CustomRules[2].ID)

	require.Len(t, patch.FilterLists, 2)
	assert.Equal(t, "10-base:easylist", patch.FilterLists[0].ID)
	assert.True(t, patch.FilterLists[0].IsEnabled)
	assert.Equal(t, "local", patch.FilterLists[1].Name)
	assert.False(t, patch.FilterLists[1].IsEnabled)
}

func TestLoadProfileDirectory_Empty(t *testing.T) {
	patch, err := LoadProfileDirectory(t.TempDir())
	require.NoError(t, err)
	assert.True(t, patch.IsEmpty())
}

func TestLoadProfileDirectory_MissingDir(t *testing.T) {
	_, err := LoadProfileDirectory(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoadProfileDirectory_BadFileFailsWholeLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "performance_mode: balanced\n")
	writeFile(t, dir, "b.yaml", "performance_mode: turbo\n")
	_, err := LoadProfileDirectory(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b.yaml")
}

func TestLoadProfileFile_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"syntax", "bad.json", `{"performance_mode":`},
		{"empty rule", "empty.yaml", "custom_rules: [\"\"]\n"},
		{"bare exception", "bare.yaml", "custom_rules: [\"@@\"]\n"},
		{"bad domain", "domain.yaml", "whitelisted_domains: [\"not a domain\"]\n"},
		{"list without url", "list.toml", "[[filter_lists]]\nname = \"x\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.content)
			_, ok, err := LoadProfileFile(path)
			assert.True(t, ok)
			assert.Error(t, err)
		})
	}
}

func TestLoadProfileFile_Unsupported(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.txt", "performance_mode: minimal")
	patch, ok, err := LoadProfileFile(path)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, patch.IsEmpty())
}
