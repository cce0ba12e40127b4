package domain

// StateProfile is the auto insurance regulatory profile of one US state.
type StateProfile struct {
	Code string `json:"code"`
	Name string `json:"name"`
	// TortSystem is "tort", "no-fault", or "choice".
	TortSystem string `json:"tort_system"`
	// MinLiability is the minimum liability split, e.g. "25/50/25"
	// (BI per person / BI per accident / PD).
	MinLiability  string `json:"min_liability"`
	PIPRequired   bool   `json:"pip_required"`
	UMUIMRequired bool   `json:"um_uim_required"`
	Notes         string `json:"notes,omitempty"`
}

// topMarketStates returns profiles for the top US auto insurance markets.
func topMarketStates() []StateProfile {
	return []StateProfile{
		{
			Code: "CA", Name: "California", TortSystem: "tort",
			MinLiability: "15/30/5", PIPRequired: false, UMUIMRequired: true,
			Notes: "Must offer UM/UIM; no PIP but MedPay optional",
		},
		{
			Code: "TX", Name: "Texas", TortSystem: "tort",
			MinLiability: "30/60/25", PIPRequired: true, UMUIMRequired: true,
			Notes: "PIP (Personal Injury Protection) required; UM/UIM offered",
		},
		{
			Code: "FL", Name: "Florida", TortSystem: "no-fault",
			MinLiability: "10/20/10", PIPRequired: true, UMUIMRequired: false,
			Notes: "No-fault state; PIP $10k required; BI liability not mandatory but recommended",
		},
		{
			Code: "NY", Name: "New York", TortSystem: "no-fault",
			MinLiability: "25/50/10", PIPRequired: true, UMUIMRequired: true,
			Notes: "No-fault state; PIP $50k (basic); SUM (UM/UIM) required at $25/50",
		},
		{
			Code: "IL", Name: "Illinois", TortSystem: "tort",
			MinLiability: "25/50/20", PIPRequired: false, UMUIMRequired: true,
			Notes: "UM/UIM required; no PIP",
		},
		{
			Code: "PA", Name: "Pennsylvania", TortSystem: "choice",
			MinLiability: "15/30/5", PIPRequired: true, UMUIMRequired: false,
			Notes: "Choice between full tort and limited tort; first-party medical benefits required",
		},
		{
			Code: "OH", Name: "Ohio", TortSystem: "tort",
			MinLiability: "25/50/25", PIPRequired: false, UMUIMRequired: true,
			Notes: "UM/UIM required; no PIP or no-fault",
		},
	}
}
