package model

type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// UserProfile is the process-wide display profile. Credits never go below zero.
type UserProfile struct {
	Name    string `json:"name"`
	Credits int    `json:"credits"`
	Tier    Tier   `json:"tier"`
}

func NewUserProfile(name string, credits int, tier Tier) UserProfile {
	p := UserProfile{Name: name, Credits: credits, Tier: tier}
	p.Normalize()
	return p
}

// Charge deducts cost, clamping at zero, and returns the amount actually taken.
func (p *UserProfile) Charge(cost int) int {
	if cost <= 0 {
		return 0
	}
	if cost > p.Credits {
		cost = p.Credits
	}
	p.Credits -= cost
	return cost
}

func (p *UserProfile) CanAfford(cost int) bool { return p.Credits >= cost }

// Normalize repairs values that may come from older or hand-edited records.
func (p *UserProfile) Normalize() {
	if p.Credits < 0 {
		p.Credits = 0
	}
	if p.Tier != TierFree && p.Tier != TierPro {
		p.Tier = TierFree
	}
}
