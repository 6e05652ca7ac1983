package leads

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// AreaOther is the sentinel area for locations outside the serviceable set.
const AreaOther = "Other"

// Field names a lead form input.
type Field string

const (
	FieldName       Field = "name"
	FieldPhone      Field = "phone"
	FieldEmail      Field = "email"
	FieldArea       Field = "area"
	FieldCustomArea Field = "custom_area"
)

// Fields lists the validated fields in display order.
var Fields = []Field{FieldName, FieldPhone, FieldEmail, FieldArea, FieldCustomArea}

// ParseField maps a wire name to a Field.
func ParseField(name string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Fields {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// LicenseAnswer is the tri-state answer to the driving-license question.
type LicenseAnswer int

const (
	LicenseUnknown LicenseAnswer = iota
	LicenseYes
	LicenseNo
)

// LicenseFromBool converts a yes/no click into an answer.
func LicenseFromBool(has bool) LicenseAnswer {
	if has {
		return LicenseYes
	}
	return LicenseNo
}

// Ptr returns the nullable boolean stored in the data store.
func (a LicenseAnswer) Ptr() *bool {
	switch a {
	case LicenseYes:
		v := true
		return &v
	case LicenseNo:
		v := false
		return &v
	default:
		return nil
	}
}

// LicenseFromPtr is the inverse of Ptr.
func LicenseFromPtr(v *bool) LicenseAnswer {
	if v == nil {
		return LicenseUnknown
	}
	return LicenseFromBool(*v)
}

func (a LicenseAnswer) String() string {
	switch a {
	case LicenseYes:
		return "true"
	case LicenseNo:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the answer as true, false or null.
func (a LicenseAnswer) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Ptr())
}

// UnmarshalJSON accepts true, false or null.
func (a *LicenseAnswer) UnmarshalJSON(data []byte) error {
	var v *bool
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("leads: has_license must be true, false or null: %w", err)
	}
	*a = LicenseFromPtr(v)
	return nil
}

// Record is the mutable state of a lead form.
type Record struct {
	Name       string        `json:"name"`
	Phone      string        `json:"phone"`
	Email      string        `json:"email"`
	Area       string        `json:"area"`
	CustomArea string        `json:"custom_area"`
	HasLicense LicenseAnswer `json:"has_license"`
}

// Normalize produces the data-store shape: trimmed strings, digits-only phone,
// lowercase email, and no custom area unless the area is Other.
func (r Record) Normalize() NewLead {
	lead := NewLead{
		Name:       strings.TrimSpace(r.Name),
		Phone:      DigitsOnly(r.Phone),
		Email:      strings.ToLower(strings.TrimSpace(r.Email)),
		Area:       strings.TrimSpace(r.Area),
		HasLicense: r.HasLicense.Ptr(),
	}
	if lead.Area == AreaOther {
		custom := strings.TrimSpace(r.CustomArea)
		lead.CustomArea = &custom
	}
	return lead
}

// NewLead is a normalized record ready to be inserted into the users collection.
type NewLead struct {
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	Email      string  `json:"email"`
	Area       string  `json:"area"`
	CustomArea *string `json:"custom_area"`
	HasLicense *bool   `json:"has_license"`
}

func (n NewLead) asLead() *Lead {
	return &Lead{
		Name:       n.Name,
		Phone:      n.Phone,
		Email:      n.Email,
		Area:       n.Area,
		CustomArea: n.CustomArea,
		HasLicense: n.HasLicense,
	}
}

// Lead is a persisted lead row.
type Lead struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email"`
	Area       string    `json:"area"`
	CustomArea *string   `json:"custom_area"`
	HasLicense *bool     `json:"has_license"`
	CreatedAt  time.Time `json:"created_at"`
}

// CarryValues returns the fields forwarded to the verification step.
func (l *Lead) CarryValues() url.Values {
	v := url.Values{}
	v.Set("name", l.Name)
	v.Set("phone", l.Phone)
	v.Set("email", l.Email)
	v.Set("area", l.Area)
	if l.CustomArea != nil {
		v.Set("custom_area", *l.CustomArea)
	} else {
		v.Set("custom_area", "")
	}
	v.Set("has_license", LicenseFromPtr(l.HasLicense).String())
	return v
}

// ListFilter bounds admin listings.
type ListFilter struct {
	Limit  int
	Offset int
	Area   string
}

// AreaCatalog is the fixed set of serviceable areas.
type AreaCatalog struct {
	areas []string
	index map[string]struct{}
}

// NewAreaCatalog builds a catalog, ignoring blanks, duplicates and the Other sentinel.
func NewAreaCatalog(areas []string) AreaCatalog {
	c := AreaCatalog{index: make(map[string]struct{}, len(areas))}
	for _, a := range areas {
		a = strings.TrimSpace(a)
		if a == "" || a == AreaOther {
			continue
		}
		if _, dup := c.index[a]; dup {
			continue
		}
		c.index[a] = struct{}{}
		c.areas = append(c.areas, a)
	}
	return c
}

// IsServiceable reports whether area is one of the operated locations.
func (c AreaCatalog) IsServiceable(area string) bool {
	_, ok := c.index[area]
	return ok
}

// Options returns the selectable areas with Other last.
func (c AreaCatalog) Options() []string {
	out := make([]string, 0, len(c.areas)+1)
	out = append(out, c.areas...)
	return append(out, AreaOther)
}

// Variant describes which form behaviour is active.
type Variant struct {
	Name string
	// PaymentEnabled turns on the verification and payment branch.
	PaymentEnabled bool
	// OtherOffersPayment shows the license question and payment CTA for Other.
	OtherOffersPayment bool
}

// VariantByName resolves FORM_VARIANT values.
func VariantByName(name string, otherOffersPayment bool) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "pay-now":
		return Variant{Name: "pay-now", PaymentEnabled: true, OtherOffersPayment: otherOffersPayment}, nil
	case "classic":
		return Variant{Name: "classic", OtherOffersPayment: otherOffersPayment}, nil
	default:
		return Variant{}, fmt.Errorf("leads: unknown form variant %q", name)
	}
}
