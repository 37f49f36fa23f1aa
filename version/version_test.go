package version

import "testing"

func TestGet(t *testing.T) {
	origRelease, origCommit, origDate := GitRelease, GitCommit, GitCommitDate
	t.Cleanup(func() { GitRelease, GitCommit, GitCommitDate = origRelease, origCommit, origDate })

	GitRelease, GitCommit, GitCommitDate = "v1.2.3", "abc1234", "2024-05-01T00:00:00Z"
	info := Get()
	if info.Release != "v1.2.3" || info.Commit != "abc1234" || info.Date != "2024-05-01T00:00:00Z" {
		t.Errorf("Get() = %+v", info)
	}
	if info.Go != GoInfo {
		t.Errorf("Go = %q, want %q", info.Go, GoInfo)
	}
	if got, want := info.String(), "v1.2.3 (abc1234, 2024-05-01T00:00:00Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
