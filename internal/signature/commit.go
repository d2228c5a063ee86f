package signature

import (
	git "github.com/go-git/go-git/v5"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// VerifyCommit opens the git repository at repoPath and checks that its
// HEAD commit carries a PGP signature, returning the committing author's
// identity on success. This mirrors the original implementation's own
// simplification (see original_source's signature_verifier/src/lib.rs,
// which notes no GPG verification library was wired and "assume[s] the
// signature is valid if it exists"): presence of PGPSignature is treated as
// proof, the bytes are not cryptographically checked against a keyring.
func VerifyCommit(repoPath string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", pherrors.Wrap(pherrors.KindSignatureFailed, "open git repository at "+repoPath, err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", pherrors.Wrap(pherrors.KindSignatureFailed, "resolve HEAD", err)
	}

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return "", pherrors.Wrap(pherrors.KindSignatureFailed, "load HEAD commit", err)
	}

	if commit.PGPSignature == "" {
		return "", pherrors.New(pherrors.KindSignatureFailed, "no GPG signature found on HEAD commit")
	}

	return commit.Author.Name, nil
}
