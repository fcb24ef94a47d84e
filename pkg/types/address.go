package types

import "strings"

// Address is the shipping address snapshot stored on orders as jsonb.
type Address struct {
	Name    string `json:"name,omitempty"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
}

// IsZero reports whether no address fields were provided.
func (a Address) IsZero() bool {
	return a.Line1 == "" && a.City == "" && a.State == "" && a.Pincode == ""
}

// OneLine renders the address as a single comma separated string.
func (a Address) OneLine() string {
	parts := []string{}
	for _, part := range []string{a.Line1, a.Line2, a.City, a.State, a.Pincode, a.Country} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}
