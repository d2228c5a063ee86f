package release

import pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"

var errUnsupportedStrategy = pherrors.New(pherrors.KindBadSpec, "release strategy names no matching strategy-specific spec block")
