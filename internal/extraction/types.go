package extraction

// EntityType identifies the kind of entity found in suspect text.
type EntityType string

const (
	EntityPhone   EntityType = "phone"
	EntityURL     EntityType = "url"
	EntityEmail   EntityType = "email"
	EntityPayment EntityType = "payment"
	EntityAmount  EntityType = "amount"
	EntityCompany EntityType = "company"
)

// Phone is a phone number found in the text.
type Phone struct {
	Value    string `json:"value"`    // normalized E.164-style digits
	Original string `json:"original"` // as it appeared in the text
	Kind     string `json:"kind"`     // "tollfree", "standard", "international"
	Country  string `json:"country"`
	Valid    bool   `json:"valid"`
}

// URL is a web address found in the text.
type URL struct {
	Value     string `json:"value"`
	Domain    string `json:"domain"`
	Shortened bool   `json:"shortened"`
}

// Email is an email address found in the text.
type Email struct {
	Value  string `json:"value"`
	Domain string `json:"domain"`
}

// Payment is a payment identifier (crypto wallet, cashtag, IBAN).
type Payment struct {
	Kind    string `json:"kind"` // "btc", "eth", "cashtag", "iban"
	Value   string `json:"value"`
	Context string `json:"context"` // surrounding text snippet
}

// Amount is a monetary amount mentioned in the text.
type Amount struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
	Original string  `json:"original"`
}

// Company is a company name matched by legal-suffix cues.
type Company struct {
	Name       string `json:"name"`
	Normalized string `json:"normalized"`
	Category   string `json:"category"`
}

// Entity is a type-erased view of one extracted entity, used by the
// orchestrator to select tool rosters.
type Entity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`      // display value
	Normalized string     `json:"normalized"` // dedup/lookup key
}

// EntitySet is an immutable snapshot of all entities found in one text.
// Lists never contain duplicate normalized values within the same type.
type EntitySet struct {
	Phones    []Phone   `json:"phones"`
	URLs      []URL     `json:"urls"`
	Emails    []Email   `json:"emails"`
	Payments  []Payment `json:"payments"`
	Amounts   []Amount  `json:"amounts"`
	Companies []Company `json:"companies"`
}

// Count returns the total number of extracted entities.
func (s EntitySet) Count() int {
	return len(s.Phones) + len(s.URLs) + len(s.Emails) +
		len(s.Payments) + len(s.Amounts) + len(s.Companies)
}

// HasEntities reports whether any entity was found.
func (s EntitySet) HasEntities() bool { return s.Count() > 0 }

// Flatten returns all entities in extraction order as type-erased records.
// Phones, URLs, emails and companies carry tool rosters; payments and
// amounts are context for the reasoner and are flattened last.
func (s EntitySet) Flatten() []Entity {
	out := make([]Entity, 0, s.Count())
	for _, p := range s.Phones {
		out = append(out, Entity{Type: EntityPhone, Value: p.Original, Normalized: p.Value})
	}
	for _, u := range s.URLs {
		out = append(out, Entity{Type: EntityURL, Value: u.Value, Normalized: u.Domain})
	}
	for _, e := range s.Emails {
		out = append(out, Entity{Type: EntityEmail, Value: e.Value, Normalized: e.Value})
	}
	for _, c := range s.Companies {
		out = append(out, Entity{Type: EntityCompany, Value: c.Name, Normalized: c.Normalized})
	}
	for _, p := range s.Payments {
		out = append(out, Entity{Type: EntityPayment, Value: p.Value, Normalized: p.Value})
	}
	for _, a := range s.Amounts {
		out = append(out, Entity{Type: EntityAmount, Value: a.Original, Normalized: a.Original})
	}
	return out
}
