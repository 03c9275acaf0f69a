package shared

import (
	"fmt"
	"net/http"
	"strconv"
)

// CompanyHeader names the header through which the request layer hands the
// engine its authenticated company id. Authentication itself lives outside
// the engine; the id is re-validated against every entity touched.
const CompanyHeader = "X-Company-ID"

// CompanyID extracts the caller's company id from the request.
func CompanyID(r *http.Request) (int64, error) {
	raw := r.Header.Get(CompanyHeader)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: missing or invalid %s header", ErrValidation, CompanyHeader)
	}
	return id, nil
}
