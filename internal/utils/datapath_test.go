package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixFilename(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"unix", "/srv/dbdata/x.csv", "/srv/dbdata/x.csv"},
		{"windows", `C:\dbdata\sub\x.csv`, "C:/dbdata/sub/x.csv"},
		{"repeated", "/srv//dbdata///x.csv", "/srv/dbdata/x.csv"},
		{"unc-share", `\\nas\share\dbdata`, "//nas/share/dbdata"},
		{"trailing-kept", "/srv/dbdata/", "/srv/dbdata/"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, FixFilename(c.input))
		})
	}
}

func TestFixPathname(t *testing.T) {
	assert.Equal(t, "", FixPathname(""))
	assert.Equal(t, "/srv/dbdata/", FixPathname("/srv/dbdata"))
	assert.Equal(t, "/srv/dbdata/", FixPathname("/srv/dbdata/"))
	assert.Equal(t, "C:/dbdata/", FixPathname(`C:\dbdata`))
}

func TestSubstituteDataFolder(t *testing.T) {
	cases := []struct {
		name     string
		template string
		root     string
		expected string
	}{
		{"plain", "{data_folder}/lookup.csv", "/srv/dbdata", "/srv/dbdata/lookup.csv"},
		{"root-trailing-slash", "{data_folder}/lookup.csv", "/srv/dbdata/", "/srv/dbdata/lookup.csv"},
		{"empty-root", "{data_folder}/ref/ref.csv", "", "/ref/ref.csv"},
		{"windows-root", "{data_folder}/ref.csv", `D:\dbdata`, "D:/dbdata/ref.csv"},
		{"no-placeholder", "/fixed/path.csv", "/srv", "/fixed/path.csv"},
		{"twice", "{data_folder}/a/{data_folder}", "r", "r/a/r"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, SubstituteDataFolder(c.template, c.root))
		})
	}
}

func TestInfoCompanion(t *testing.T) {
	assert.Equal(t, "{data_folder}/lookup.info", InfoCompanion("{data_folder}/lookup.csv"))
	assert.Equal(t, "{data_folder}/archive.tar.info", InfoCompanion("{data_folder}/archive.tar.gz"))
	assert.Equal(t, "{data_folder}/README.info", InfoCompanion("{data_folder}/README"))
	assert.True(t, IsInfoCompanion("{data_folder}/lookup.info"))
	assert.False(t, IsInfoCompanion("{data_folder}/lookup.csv"))
}

func TestSplitAndJoinRemote(t *testing.T) {
	dir, name := SplitRemote("/pub/dbdata/lookup.csv")
	assert.Equal(t, "/pub/dbdata", dir)
	assert.Equal(t, "lookup.csv", name)

	dir, name = SplitRemote("lookup.csv")
	assert.Equal(t, ".", dir)
	assert.Equal(t, "lookup.csv", name)

	assert.Equal(t, "/pub/dbdata/lookup.csv", JoinRemote("/pub/dbdata", "lookup.csv"))
	assert.Equal(t, "/pub/dbdata/lookup.csv", JoinRemote("/pub/dbdata/", "/lookup.csv"))
	assert.Equal(t, "lookup.csv", JoinRemote("", "lookup.csv"))
}
