// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package install

import (
	"os"

	"grimm.is/focusshield/internal/brand"
	"grimm.is/focusshield/internal/policy"
)

// DefaultCategories resolves the installer's default category seed set
// (spec.md §6 Categories), honoring the opt-in "all categories" toggle.
func DefaultCategories() []policy.Category {
	if os.Getenv(brand.ConfigEnvPrefix+"_ALL_CATEGORIES") != "" {
		return policy.AllCategories
	}
	return policy.DefaultCategories
}
