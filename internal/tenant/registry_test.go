package tenant

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullpass/nullpass/internal/models"
)

func fakeEnv(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestDefault(t *testing.T) {
	r := Default(fakeEnv(map[string]string{"DROP_POLAR_SECRET": "drop-secret"}))

	assert.Len(t, r.All(), len(models.AllServices))
	assert.Equal(t, "drop-secret", r.WebhookSecret(models.ServiceDrop))
	assert.Empty(t, r.WebhookSecret(models.ServiceMails))
	assert.Equal(t, models.ServiceDB, r.ByWebhookPath("DB").Service)
	assert.Nil(t, r.ByWebhookPath("unknown"))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"services": [
			{"service": "MAILS", "name": "Null Mails", "polar_webhook_secret": "from-file"},
			{"service": "DROP", "name": "Null Drop", "webhook_path": "nulldrop"}
		]
	}`), 0o600))

	r, err := LoadFromFile(path, fakeEnv(map[string]string{"DROP_POLAR_SECRET": "from-env"}))
	require.NoError(t, err)

	assert.Equal(t, "from-file", r.WebhookSecret(models.ServiceMails))
	assert.Equal(t, "from-env", r.WebhookSecret(models.ServiceDrop))
	assert.Equal(t, "Null Drop", r.ByWebhookPath("nulldrop").Name)
	assert.Nil(t, r.ByWebhookPath("drop"))
	assert.True(t, r.Exists(models.ServiceVault))
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"), fakeEnv(nil))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"services":[{"service":"NOPE"}]}`), 0o600))
	_, err = LoadFromFile(path, fakeEnv(nil))
	assert.Error(t, err)
}
