package leads

import (
	"context"
	"errors"
	"net/url"
	"sync"
)

// Step is where the visitor goes after a successful submit.
type Step string

const (
	StepVerification Step = "verification"
	StepSubmitted    Step = "submitted"
)

// CallToAction labels the submit button.
type CallToAction string

const (
	CTAPayNow       CallToAction = "pay_now"
	CTAStartJourney CallToAction = "start_journey"
)

// Outcome is the result of a successful submit.
type Outcome struct {
	Next  Step
	Lead  *Lead
	Carry url.Values
}

// FormState is a read-only snapshot of a form.
type FormState struct {
	Record              Record            `json:"record"`
	Errors              map[string]string `json:"errors"`
	ShowLicenseQuestion bool              `json:"show_license_question"`
	CallToAction        CallToAction      `json:"call_to_action"`
	Submitting          bool              `json:"submitting"`
	Submitted           bool              `json:"submitted"`
}

// Form owns one visitor's lead record and its validation errors.
type Form struct {
	mu          sync.Mutex
	catalog     AreaCatalog
	variant     Variant
	record      Record
	errors      ErrorSet
	showLicense bool
	submitting  bool
	submitted   bool
}

// NewForm returns an empty form.
func NewForm(catalog AreaCatalog, variant Variant) *Form {
	return &Form{
		catalog: catalog,
		variant: variant,
		errors:  ErrorSet{},
	}
}

// Change stores value in field and revalidates that field only.
func (f *Form) Change(field Field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitted {
		return ErrFormSubmitted
	}

	switch field {
	case FieldName:
		f.record.Name = value
	case FieldPhone:
		f.record.Phone = value
	case FieldEmail:
		f.record.Email = value
	case FieldArea:
		f.record.Area = value
		f.applyArea(value)
	case FieldCustomArea:
		f.record.CustomArea = value
	default:
		return ErrUnknownField
	}

	f.setFieldError(field, f.catalog.ValidateField(field, value, f.record.Area))
	return nil
}

func (f *Form) applyArea(area string) {
	f.showLicense = f.licenseApplies(area)
	if !f.showLicense {
		f.record.HasLicense = LicenseUnknown
	}
	if area != AreaOther {
		delete(f.errors, FieldCustomArea)
	}
}

func (f *Form) licenseApplies(area string) bool {
	if f.catalog.IsServiceable(area) {
		return true
	}
	return area == AreaOther && f.variant.OtherOffersPayment
}

func (f *Form) setFieldError(field Field, err error) {
	var fe *FieldError
	if errors.As(err, &fe) {
		f.errors[field] = fe
		return
	}
	delete(f.errors, field)
}

// Fill replays a whole record through Change in field order, then answers the
// license question if it is shown.
func (f *Form) Fill(rec Record) {
	_ = f.Change(FieldName, rec.Name)
	_ = f.Change(FieldPhone, rec.Phone)
	_ = f.Change(FieldEmail, rec.Email)
	_ = f.Change(FieldArea, rec.Area)
	_ = f.Change(FieldCustomArea, rec.CustomArea)
	if rec.HasLicense != LicenseUnknown && f.ShowLicenseQuestion() {
		_ = f.AnswerLicense(rec.HasLicense == LicenseYes)
	}
}

// AnswerLicense records the yes/no answer. Later answers overwrite earlier ones.
func (f *Form) AnswerLicense(has bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitted {
		return ErrFormSubmitted
	}
	f.record.HasLicense = LicenseFromBool(has)
	return nil
}

func (f *Form) ShowLicenseQuestion() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.showLicense
}

func (f *Form) IsSubmitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// Record returns a copy of the current record.
func (f *Form) Record() Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record
}

// Errors returns a copy of the current error set.
func (f *Form) Errors() ErrorSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errors.clone()
}

// CallToAction reports the submit label for the current answers.
func (f *Form) CallToAction() CallToAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paymentEligible() {
		return CTAPayNow
	}
	return CTAStartJourney
}

func (f *Form) paymentEligible() bool {
	return f.variant.PaymentEnabled && f.showLicense && f.record.HasLicense == LicenseYes
}

// State snapshots the form for rendering.
func (f *Form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	cta := CTAStartJourney
	if f.paymentEligible() {
		cta = CTAPayNow
	}
	return FormState{
		Record:              f.record,
		Errors:              f.errors.Messages(),
		ShowLicenseQuestion: f.showLicense,
		CallToAction:        cta,
		Submitting:          f.submitting,
		Submitted:           f.submitted,
	}
}

// Submit validates every field and, when clean, hands the normalized lead to
// the submitter. Only one submit may be in flight at a time.
func (f *Form) Submit(ctx context.Context, submitter Submitter) (*Outcome, error) {
	f.mu.Lock()
	if f.submitted {
		f.mu.Unlock()
		return nil, ErrFormSubmitted
	}
	if f.submitting {
		f.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	f.errors = f.catalog.ValidateRecord(f.record)
	if !f.errors.Empty() {
		errs := f.errors.clone()
		f.mu.Unlock()
		return nil, &ValidationErrors{Errors: errs}
	}
	f.submitting = true
	eligible := f.paymentEligible()
	normalized := f.record.Normalize()
	f.mu.Unlock()

	lead, err := submitter.Submit(ctx, normalized)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if err != nil {
		var subErr *SubmissionError
		if errors.As(err, &subErr) {
			return nil, subErr
		}
		return nil, &SubmissionError{Kind: SubmissionNetwork, Message: networkErrorMessage, Err: err}
	}
	f.submitted = true
	if lead == nil {
		lead = normalized.asLead()
	}

	if !eligible {
		return &Outcome{Next: StepSubmitted, Lead: lead}, nil
	}
	return &Outcome{Next: StepVerification, Lead: lead, Carry: lead.CarryValues()}, nil
}
