package dbbadger

import (
	"testing"

	"github.com/coinvault-network/coinvault-daemon/internal/core/ports"
)

// newTestRepoManager opens an in-memory store released when the test ends.
func newTestRepoManager(t *testing.T) ports.RepoManager {
	t.Helper()
	repoManager, err := NewRepoManager("", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(repoManager.Close)
	return repoManager
}
