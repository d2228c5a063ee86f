// Package gitsync persists the git-sync subsystem's replication cursor
// (spec.md §6.5) and detects drift between a repository's current HEAD and
// the last commit the SyncJob controller successfully applied to a target
// cluster. Supplemented from original_source/src/modules/git_sync (its
// sync.rs/drift.rs hand the actual apply/drift work to the platform-specific
// orchestrator and never persist a cursor themselves — the cursor file is
// this rewrite's concrete answer to spec.md §6.5's requirement).
package gitsync

import (
	"encoding/json"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// CursorFileName is the JSON file, stored inside the source repository's
// working tree, holding the last synchronised commit OIDs.
const CursorFileName = ".ph-sync-cursor.json"

// Cursor records the last commit each side of a sync observed.
type Cursor struct {
	LastSourceSyncedOID string `json:"last_source_synced_oid"`
	LastTargetSyncedOID string `json:"last_target_synced_oid"`
}

// LoadCursor reads the cursor file from repoPath. A missing file is not an
// error — it returns a zero Cursor, the state of a repository never synced.
func LoadCursor(repoPath string) (Cursor, error) {
	raw, err := os.ReadFile(filepath.Join(repoPath, CursorFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return Cursor{}, nil
		}
		return Cursor{}, pherrors.Wrap(pherrors.KindDeserialization, "read sync cursor", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, pherrors.Wrap(pherrors.KindDeserialization, "parse sync cursor", err)
	}
	return c, nil
}

// SaveCursor writes c to repoPath's cursor file.
func SaveCursor(repoPath string, c Cursor) error {
	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return pherrors.Wrap(pherrors.KindDeserialization, "marshal sync cursor", err)
	}
	if err := os.WriteFile(filepath.Join(repoPath, CursorFileName), raw, 0o644); err != nil {
		return pherrors.Wrap(pherrors.KindKubeAPI, "write sync cursor", err)
	}
	return nil
}

// HeadOID opens the repository at repoPath and returns its current HEAD
// commit hash.
func HeadOID(repoPath string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", pherrors.Wrap(pherrors.KindGitClone, "open repository", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", pherrors.Wrap(pherrors.KindGitClone, "resolve HEAD", err)
	}
	return head.Hash().String(), nil
}

// Drifted reports whether repoPath's current HEAD differs from the cursor's
// recorded source OID — the source side of the sync has moved since the
// last successful apply.
func Drifted(repoPath string, cursor Cursor) (bool, error) {
	head, err := HeadOID(repoPath)
	if err != nil {
		return false, err
	}
	return head != cursor.LastSourceSyncedOID, nil
}
