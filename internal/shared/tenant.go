package shared

import "fmt"

// ErrTenantMismatch is returned when an entity belongs to a different
// company than the caller. Cross-company partitioning is enforced by the
// request layer; this is the engine's defense-in-depth check.
var ErrTenantMismatch = fmt.Errorf("%w: entity belongs to another company", ErrValidation)

// CheckTenant verifies that an entity's company matches the caller's.
func CheckTenant(callerCompanyID, entityCompanyID int64) error {
	if callerCompanyID <= 0 {
		return fmt.Errorf("%w: company id required", ErrValidation)
	}
	if callerCompanyID != entityCompanyID {
		return ErrTenantMismatch
	}
	return nil
}
