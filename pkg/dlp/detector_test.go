package dlp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectorMasksNotes(t *testing.T) {
	detector, err := NewDetector(DefaultRules())
	require.NoError(t, err)

	note := "call Dr. Lee at 555-123-4567 or lee@clinic.org, SSN 123-45-6789"

	findings := detector.Detect(note)
	require.Len(t, findings, 3)
	assert.Equal(t, "phone", findings[0].Type)
	assert.Equal(t, "email", findings[1].Type)
	assert.Equal(t, "ssn", findings[2].Type)

	assert.Equal(t, "call Dr. Lee at (***) ***-**** or ***@***, SSN ***-**-****", detector.Sanitize(note))
}

func TestDetectorLeavesPlainNotes(t *testing.T) {
	detector, err := NewDetector(DefaultRules())
	require.NoError(t, err)

	assert.Empty(t, detector.Detect("after run, felt fine"))
	assert.Equal(t, "after run, felt fine", detector.Sanitize("after run, felt fine"))

	var nilDetector *Detector
	assert.Equal(t, "x 123-45-6789", nilDetector.Sanitize("x 123-45-6789"))
}

func TestLoadRulesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - name: MRN
    type: mrn
    pattern: 'MRN\d{6}'
    mask: 'MRN######'
    enabled: true
  - name: Disabled
    type: other
    pattern: 'felt'
    mask: 'x'
    enabled: false
`), 0o600))

	cfg, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, cfg.Rules, 2)

	detector, err := NewDetector(cfg)
	require.NoError(t, err)
	assert.Equal(t, "felt dizzy MRN######", detector.Sanitize("felt dizzy MRN123456"))
}

func TestLoadRulesDefaultsAndErrors(t *testing.T) {
	cfg, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), cfg)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("rules: []\n"), 0o600))
	_, err = LoadRules(empty)
	assert.Error(t, err)

	_, err = NewDetector(RulesConfig{Rules: []Rule{{Pattern: "(", Enabled: true}}})
	assert.Error(t, err)
}
