// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/loreweave/loreweave/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("RELATION_NOT_FOUND").Errorf("relation 7 not found")
	errutil.AssertErrorCode(t, err, "RELATION_NOT_FOUND")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("universe_id", "01HZN3XS000000000000000000").Errorf("test error")
	errutil.AssertErrorContext(t, err, "universe_id", "01HZN3XS000000000000000000")
}
