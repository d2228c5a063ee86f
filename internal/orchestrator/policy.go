package orchestrator

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// PolicyToolPath is the external policy tool binary invoked for clusters
// that carry a non-empty policy map, per spec.md §6.6 ("receives a
// directory of policies and a manifest file; exits 0 on pass, non-zero on
// violation with a diagnostic body").
var PolicyToolPath = "policy-tool"

// enforcePolicies writes policies and manifests to a scratch directory and
// runs the external policy tool against them, per spec.md §4.8 ("Policy
// enforcement"). A non-empty policies map is required by the caller before
// this is invoked; an empty map means no enforcement for that cluster.
func enforcePolicies(ctx context.Context, policies map[string]string, manifests string) error {
	dir, err := os.MkdirTemp("", "ph-operator-policy-*")
	if err != nil {
		return pherrors.Wrap(pherrors.KindPolicyViolation, "create policy scratch directory", err)
	}
	defer os.RemoveAll(dir)

	policyDir := filepath.Join(dir, "policies")
	if err := os.Mkdir(policyDir, 0o700); err != nil {
		return pherrors.Wrap(pherrors.KindPolicyViolation, "create policy directory", err)
	}
	for name, content := range policies {
		if err := os.WriteFile(filepath.Join(policyDir, name+".yaml"), []byte(content), 0o600); err != nil {
			return pherrors.Wrap(pherrors.KindPolicyViolation, "write policy file", err)
		}
	}

	manifestPath := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(manifestPath, []byte(manifests), 0o600); err != nil {
		return pherrors.Wrap(pherrors.KindPolicyViolation, "write manifest file", err)
	}

	var stderr, stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, PolicyToolPath, policyDir, manifestPath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		body := stderr.String()
		if body == "" {
			body = stdout.String()
		}
		return pherrors.Wrap(pherrors.KindPolicyViolation, "policy tool rejected manifests: "+body, err)
	}
	return nil
}
