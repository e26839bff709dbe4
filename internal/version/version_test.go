package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// withBuild подменяет значения, которые в релизной сборке приходят из -ldflags.
func withBuild(t *testing.T, v, c, d string) {
	t.Helper()
	prevVersion, prevCommit, prevDate := version, commit, date
	version, commit, date = v, c, d
	t.Cleanup(func() { version, commit, date = prevVersion, prevCommit, prevDate })
}

func TestDevBuildDefaults(t *testing.T) {
	withBuild(t, "dev", "unknown", "unknown")

	assert.Equal(t, "orderdesk version=dev commit=unknown date=unknown", String())
}

func TestReleaseBuild(t *testing.T) {
	withBuild(t, "v1.4.0", "3f2a9c1", "2024-05-01T10:00:00Z")

	v, c, d := Info()
	assert.Equal(t, "v1.4.0", v)
	assert.Equal(t, "3f2a9c1", c)
	assert.Equal(t, "2024-05-01T10:00:00Z", d)
	assert.Equal(t, v, GetVersion())
	assert.Equal(t, c, GetCommit())
	assert.Equal(t, d, GetDate())
	assert.Equal(t, "orderdesk version=v1.4.0 commit=3f2a9c1 date=2024-05-01T10:00:00Z", String())
}
