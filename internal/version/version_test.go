package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pin sets the build variables for one test and restores them afterwards.
func pin(t *testing.T, version, commit, date, branch, tree string) {
	t.Helper()
	saved := []string{Version, Commit, Date, Branch, TreeState}
	t.Cleanup(func() {
		Version, Commit, Date, Branch, TreeState = saved[0], saved[1], saved[2], saved[3], saved[4]
	})
	Version, Commit, Date, Branch, TreeState = version, commit, date, branch, tree
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	assert.Equal(t, ApplicationName, info.Application)
	assert.NotEmpty(t, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestString(t *testing.T) {
	t.Run("unknown commit", func(t *testing.T) {
		pin(t, "dev", "unknown", "unknown", "unknown", "unknown")
		s := String()
		assert.Contains(t, s, "xtreamer version dev")
		assert.NotContains(t, s, "commit:")
	})

	t.Run("with commit and branch", func(t *testing.T) {
		pin(t, "1.0.0", "abc123def456789", "2026-01-15T10:30:00Z", "main", "clean")
		s := String()
		assert.Contains(t, s, "commit: abc123de,")
		assert.Contains(t, s, "built: 2026-01-15T10:30:00Z")
		assert.Contains(t, s, "branch: main")
	})

	t.Run("dirty tree", func(t *testing.T) {
		pin(t, "1.0.0", "abc123def456789", "unknown", "unknown", "dirty")
		assert.Contains(t, String(), "abc123de*")
		assert.Equal(t, "1.0.0 (abc123de*)", Short())
	})
}

func TestShort(t *testing.T) {
	pin(t, "1.0.0", "unknown", "unknown", "unknown", "unknown")
	assert.Equal(t, "1.0.0", Short())
}

func TestUserAgent(t *testing.T) {
	pin(t, "1.4.0", "unknown", "unknown", "unknown", "unknown")
	assert.Equal(t, "xtreamer/1.4.0", UserAgent())
}

func TestSnapshotAndRelease(t *testing.T) {
	tests := []struct {
		version  string
		snapshot bool
	}{
		{"dev", true},
		{"1.0.0", false},
		{"1.0.1-SNAPSHOT.abc1234", true},
		{"1.2.3-alpha.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			pin(t, tt.version, "unknown", "unknown", "unknown", "unknown")
			assert.Equal(t, tt.snapshot, IsSnapshot())
			assert.Equal(t, !tt.snapshot, IsRelease())
		})
	}
}

func TestJSON(t *testing.T) {
	pin(t, "1.2.3", "abc123def456789", "2026-01-15T10:30:00Z", "feature-branch", "clean")

	var info Info
	require.NoError(t, json.Unmarshal([]byte(JSON()), &info))
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abc123def456789", info.Commit)
	assert.Equal(t, "feature-branch", info.Branch)
	assert.Equal(t, "clean", info.TreeState)
}
