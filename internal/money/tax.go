package money

// TaxBreakup carries the jurisdictional split of a tax total. Intra-state
// supplies split into CGST+SGST halves; inter-state supplies go entirely to
// IGST. Whether a supply is intra-state is decided by the caller (state-code
// comparison lives outside the engine).
type TaxBreakup struct {
	CGST Money `json:"cgst"`
	SGST Money `json:"sgst"`
	IGST Money `json:"igst"`
}

// SplitTax breaks a tax total into its jurisdictional components. The halves
// of an intra-state split re-sum exactly to the total (largest remainder),
// so an odd minor unit lands on CGST.
func SplitTax(total Money, intraState bool) (TaxBreakup, error) {
	zero := Zero(total.Currency)
	if !intraState {
		return TaxBreakup{CGST: zero, SGST: zero, IGST: total}, nil
	}
	halves, err := total.Split(2)
	if err != nil {
		return TaxBreakup{}, err
	}
	return TaxBreakup{CGST: halves[0], SGST: halves[1], IGST: zero}, nil
}

// Total returns CGST+SGST+IGST.
func (t TaxBreakup) Total() (Money, error) {
	sum, err := t.CGST.Add(t.SGST)
	if err != nil {
		return Money{}, err
	}
	return sum.Add(t.IGST)
}
