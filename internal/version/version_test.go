package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func restore(t *testing.T) {
	t.Helper()
	v, r, d := Version, Revision, BuildDate
	t.Cleanup(func() {
		Version, Revision, BuildDate = v, r, d
	})
}

func TestStrings(t *testing.T) {
	restore(t)
	Version, Revision, BuildDate = "1.4.0", "5e23a4", ""

	assert.Equal(t, "1.4.0 (5e23a4)", Short())
	assert.Equal(t, "1.4.0 (5e23a4; "+runtime.Version()+"; "+runtime.GOOS+"/"+runtime.GOARCH+")", Detailed())

	BuildDate = "2025-01-01T00:00:00Z"
	assert.True(t, strings.HasSuffix(Detailed(), "; 2025-01-01T00:00:00Z)"))

	assert.True(t, strings.HasPrefix(UserAgent(), "dbsync/1.4.0 ("))
}

func TestApplyBuildInfo_FillsDevDefaults(t *testing.T) {
	restore(t)
	Version, Revision, BuildDate = devVersion, "HEAD", ""

	applyBuildInfo("v2.0.1", map[string]string{
		"vcs.revision": "abcdef1234567890",
		"vcs.modified": "true",
		"vcs.time":     "2025-12-12T01:00:00Z",
	})

	assert.Equal(t, "2.0.1", Version)
	assert.Equal(t, "abcdef123456-dirty", Revision)
	assert.Equal(t, "2025-12-12T01:00:00Z", BuildDate)
}

func TestApplyBuildInfo_KeepsLdflags(t *testing.T) {
	restore(t)
	Version, Revision, BuildDate = "1.2.3", "deadbeef", "from-ldflags"

	applyBuildInfo("(devel)", map[string]string{
		"vcs.revision": "abcdef",
		"vcs.time":     "2025-12-12T01:00:00Z",
	})

	assert.Equal(t, "1.2.3", Version)
	assert.Equal(t, "deadbeef", Revision)
	assert.Equal(t, "from-ldflags", BuildDate)
}
