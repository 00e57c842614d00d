package cards

import "github.com/congo-pay/tokenwallet/internal/sdk"

// Card is the display view of one digitized card.
type Card struct {
	DigitalCardID      string
	PanSuffix          string
	Expiry             string
	State              sdk.CardState
	Default            bool
	NeedsReplenishment bool
	PendingActivation  bool
	HasArt             bool
}

// displayExpiry turns MMYY into MM/YY and leaves anything else untouched.
func displayExpiry(raw string) string {
	if len(raw) != 4 {
		return raw
	}
	return raw[:2] + "/" + raw[2:]
}
