package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `version: "1.2.3"
app:
  title: Front Desk
formFields:
  - id: purpose
    type: textarea
    label: Purpose
    required: true
    order: 3
    serviceNowField: u_reason
  - id: visitorName
    type: text
    label: Name
    required: true
    order: 1
serviceNow:
  instanceUrl: https://example.service-now.com
  username: kiosk
  password: file-secret
  tableName: u_visitor_log
kiosk:
  port: 9090
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "kiosk.yaml", sampleYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "Front Desk", cfg.App.Title)
	assert.Equal(t, "https://example.service-now.com", cfg.ServiceNow.InstanceURL)
	assert.Equal(t, "file-secret", cfg.ServiceNow.Password)
	assert.Equal(t, 9090, cfg.Kiosk.Port)
	require.Len(t, cfg.FormFields, 2)

	// defaults
	assert.Equal(t, "cmn_location", cfg.ServiceNow.LocationTable)
	assert.Equal(t, "u_signature", cfg.ServiceNow.SignatureField)
	assert.Equal(t, AttachmentBlob, cfg.ServiceNow.AttachmentMode)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "Please enter your name", cfg.Messages.ValidationErrorName)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeFile(t, "kiosk.yaml", sampleYAML)
	t.Setenv("KIOSK_SERVICENOW_PASSWORD", "env-secret")
	t.Setenv("KIOSK_SERVICENOW_INSTANCEURL", "https://other.service-now.com")
	t.Setenv("KIOSK_KIOSK_ADMINTOKEN", "tok")
	t.Setenv("KIOSK_KIOSK_PORT", "7000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.ServiceNow.Password)
	assert.Equal(t, "https://other.service-now.com", cfg.ServiceNow.InstanceURL)
	assert.Equal(t, "tok", cfg.Kiosk.AdminToken)
	assert.Equal(t, 7000, cfg.Kiosk.Port)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "formConfig.json", `{
  "version": "1.0.0",
  "serviceNow": {
    "instanceUrl": "https://example.service-now.com",
    "username": "kiosk",
    "tableName": "u_visitor_log"
  }
}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Len(t, cfg.FormFields, 5, "default form used when none configured")
}

func TestLoadInvalid(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("missing instance url", func(t *testing.T) {
		path := writeFile(t, "kiosk.yaml", "serviceNow:\n  username: kiosk\n  tableName: t\n")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("bad attachment mode", func(t *testing.T) {
		t.Setenv("KIOSK_SERVICENOW_ATTACHMENTMODE", "carrier-pigeon")
		_, err := Load(writeFile(t, "kiosk.yaml", sampleYAML))
		assert.Error(t, err)
	})
}

func TestSortedFieldsAndColumn(t *testing.T) {
	t.Parallel()

	cfg := &Config{FormFields: []FormField{
		{ID: "purpose", Order: 3, ServiceNowField: "u_reason"},
		{ID: "visitorName", Order: 1},
		{ID: "phoneNumber", Order: 2},
	}}

	sorted := cfg.SortedFields()
	ids := []string{sorted[0].ID, sorted[1].ID, sorted[2].ID}
	assert.Equal(t, []string{"visitorName", "phoneNumber", "purpose"}, ids)
	assert.Equal(t, "purpose", cfg.FormFields[0].ID, "original order untouched")

	assert.Equal(t, "u_reason", cfg.Column("purpose", "u_purpose"))
	assert.Equal(t, "u_vistor_name", cfg.Column("visitorName", "u_vistor_name"))
	assert.Equal(t, "u_x", cfg.Column("missing", "u_x"))
}

func TestIncrementVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version string
		kind    string
		want    string
		wantErr bool
	}{
		{"1.2.3", BumpPatch, "1.2.4", false},
		{"1.2.3", BumpMinor, "1.3.0", false},
		{"1.2.3", BumpMajor, "2.0.0", false},
		{"1.2.3", "", "1.2.4", false},
		{"1.0", BumpPatch, "1.0.1", false},
		{"", BumpMinor, "0.1.0", false},
		{"1.x.3", BumpPatch, "", true},
		{"1.2.3.4", BumpPatch, "", true},
		{"1.2.3", "huge", "", true},
	}

	for _, tt := range tests {
		got, err := IncrementVersion(tt.version, tt.kind)
		if tt.wantErr {
			assert.Error(t, err, "%s/%s", tt.version, tt.kind)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s/%s", tt.version, tt.kind)
	}
}

func TestBumpAndSave(t *testing.T) {
	t.Parallel()

	cfg := &Config{Version: "1.0.0"}
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	v, err := Bump(cfg, BumpMinor, "", now)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", v)
	require.Len(t, cfg.VersionHistory, 1)
	assert.Equal(t, VersionEntry{Version: "1.1.0", Timestamp: "2024-03-05T10:00:00Z", Changes: "Configuration update"}, cfg.VersionHistory[0])

	_, err = Bump(cfg, BumpPatch, "renamed title", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "1.1.1", cfg.Version)
	assert.Len(t, cfg.VersionHistory, 2)

	for _, name := range []string{"kiosk.yaml", "kiosk.json"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, Save(path, cfg))

		loaded, err := LoadDocument(path)
		require.NoError(t, err)
		assert.Equal(t, "1.1.1", loaded.Version, name)
		assert.Equal(t, cfg.VersionHistory, loaded.VersionHistory, name)
	}
}

func TestCanonicalizeEnvKey(t *testing.T) {
	t.Parallel()

	existing := map[string]any{
		"serviceNow": map[string]any{"instanceUrl": "x", "tableName": "y"},
	}

	assert.Equal(t, "serviceNow.instanceUrl", canonicalizeEnvKey("SERVICENOW_INSTANCEURL", existing))
	assert.Equal(t, "serviceNow.password", canonicalizeEnvKey("SERVICENOW_PASSWORD", existing))
	assert.Equal(t, "kiosk.port", canonicalizeEnvKey("KIOSK_PORT", existing))
}

func TestValidateDocument(t *testing.T) {
	t.Parallel()

	cfg := &Config{FormFields: DefaultFormFields()}
	assert.NoError(t, cfg.ValidateDocument())

	cfg.FormFields = append(cfg.FormFields, FormField{ID: "purpose", Order: 9})
	assert.Error(t, cfg.ValidateDocument(), "duplicate id")

	cfg.FormFields = []FormField{{ID: ""}}
	assert.Error(t, cfg.ValidateDocument(), "empty id")
}

func TestRedacted(t *testing.T) {
	t.Parallel()

	cfg := Config{
		ServiceNow: ServiceNow{Username: "kiosk", Password: "secret"},
		Kiosk:      Kiosk{AdminToken: "tok"},
	}
	red := cfg.Redacted()
	assert.Equal(t, RedactedSecret, red.ServiceNow.Password)
	assert.Equal(t, RedactedSecret, red.Kiosk.AdminToken)
	assert.Equal(t, "kiosk", red.ServiceNow.Username)
	assert.Equal(t, "secret", cfg.ServiceNow.Password, "original untouched")

	empty := Config{}.Redacted()
	assert.Equal(t, "", empty.ServiceNow.Password)
}
