// Package signature implements the "Signature verifier" external
// collaborator from spec.md §6.6: verifyImage(imageUrl, publicKeyPem) and
// verifyCommit(repoPath). The Rust original built this on sigstore/cosign
// and gix; this port uses go-containerregistry, which is the only OCI
// registry client in the example corpus (see DESIGN.md).
package signature

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// cosignSignatureAnnotation is the OCI layer annotation cosign stores the
// base64 signature bytes under.
const cosignSignatureAnnotation = "dev.cosignproject.cosign/signature"

// VerifyImage performs keyed signature verification of imageURL against the
// PEM-encoded public key, following the cosign convention of a sibling tag
// `sha256-<digest>.sig` holding the detached signature as a layer
// annotation. Returns the signer identity (the PEM itself, matching the
// original implementation's convention) on success.
func VerifyImage(ctx context.Context, imageURL, publicKeyPEM string) (string, error) {
	ref, err := name.ParseReference(imageURL)
	if err != nil {
		return "", pherrors.Wrap(pherrors.KindBadSpec, "parse image reference "+imageURL, err)
	}

	desc, err := remote.Get(ref, remote.WithContext(ctx))
	if err != nil {
		return "", pherrors.Wrap(pherrors.KindSignatureFailed, "resolve image manifest", err)
	}

	sigTag, err := signatureTag(ref, desc.Digest)
	if err != nil {
		return "", err
	}

	sigImg, err := remote.Image(sigTag, remote.WithContext(ctx))
	if err != nil {
		return "", pherrors.Wrap(pherrors.KindSignatureFailed, "no signature found for "+imageURL, err)
	}

	sigBytes, err := extractSignature(sigImg)
	if err != nil {
		return "", err
	}

	pub, err := parsePublicKey(publicKeyPEM)
	if err != nil {
		return "", err
	}

	if err := verifyDigest(pub, desc.Digest.String(), sigBytes); err != nil {
		return "", pherrors.Wrap(pherrors.KindSignatureFailed, "signature does not verify against provided public key", err)
	}

	return publicKeyPEM, nil
}

// signatureTag builds the cosign-convention signature tag for a digest.
func signatureTag(ref name.Reference, digest v1.Hash) (name.Tag, error) {
	sanitized := strings.ReplaceAll(digest.String(), ":", "-")
	tag, err := name.NewTag(ref.Context().Name()+":"+sanitized+".sig", name.WeakValidation)
	if err != nil {
		return name.Tag{}, pherrors.Wrap(pherrors.KindBadSpec, "build signature tag reference", err)
	}
	return tag, nil
}

// extractSignature reads the base64 signature annotation off the first
// layer of the signature image.
func extractSignature(sigImg v1.Image) ([]byte, error) {
	manifest, err := sigImg.Manifest()
	if err != nil {
		return nil, pherrors.Wrap(pherrors.KindSignatureFailed, "read signature image manifest", err)
	}
	for _, layer := range manifest.Layers {
		if b64, ok := layer.Annotations[cosignSignatureAnnotation]; ok {
			sig, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				return nil, pherrors.Wrap(pherrors.KindSignatureFailed, "decode signature annotation", err)
			}
			return sig, nil
		}
	}
	return nil, pherrors.New(pherrors.KindSignatureFailed, "signature image carries no signature annotation")
}

// parsePublicKey decodes a PEM-encoded PKIX public key, supporting the RSA
// and ECDSA families cosign's default signing scheme uses.
func parsePublicKey(pemStr string) (crypto.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, pherrors.New(pherrors.KindBadSpec, "no PEM block found in public key")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, pherrors.Wrap(pherrors.KindBadSpec, "parse PKIX public key", err)
	}
	return pub, nil
}

// verifyDigest verifies sig over the SHA-256 digest of message using pub.
func verifyDigest(pub crypto.PublicKey, message string, sig []byte) error {
	hashed := sha256.Sum256([]byte(message))

	switch key := pub.(type) {
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(key, hashed[:], sig) {
			return fmt.Errorf("ecdsa signature verification failed")
		}
		return nil
	case *rsa.PublicKey:
		return rsa.VerifyPKCS1v15(key, crypto.SHA256, hashed[:], sig)
	default:
		return fmt.Errorf("unsupported public key type %T", pub)
	}
}
