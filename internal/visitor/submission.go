// Package visitor holds the sign-in form submission and its validation.
package visitor

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/evcraddock/visitor-kiosk/internal/config"
)

// Form field ids shared with the configuration document.
const (
	FieldVisitorName    = "visitorName"
	FieldVisitingPerson = "visitingPerson"
	FieldPurpose        = "purpose"
	FieldPhoneNumber    = "phoneNumber"
	FieldSignature      = "signature"
)

var fixedFields = []string{
	FieldVisitorName,
	FieldVisitingPerson,
	FieldPurpose,
	FieldPhoneNumber,
	FieldSignature,
}

// Submission is one visitor's sign-in form.
type Submission struct {
	VisitorName    string `json:"visitorName" validate:"required"`
	VisitingPerson string `json:"visitingPerson" validate:"required"`
	Purpose        string `json:"purpose" validate:"required"`
	PhoneNumber    string `json:"phoneNumber" validate:"required"`
	// Signature is a PNG data URI or bare base64 payload.
	Signature  string            `json:"signature" validate:"required"`
	FacilityID string            `json:"facilityId,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Value returns the value held for a form field id.
func (s Submission) Value(fieldID string) (string, bool) {
	switch fieldID {
	case FieldVisitorName:
		return s.VisitorName, true
	case FieldVisitingPerson:
		return s.VisitingPerson, true
	case FieldPurpose:
		return s.Purpose, true
	case FieldPhoneNumber:
		return s.PhoneNumber, true
	case FieldSignature:
		return s.Signature, true
	}
	v, ok := s.Extra[fieldID]
	return v, ok
}

// Set stores a value for a form field id.
func (s *Submission) Set(fieldID, value string) {
	switch fieldID {
	case FieldVisitorName:
		s.VisitorName = value
	case FieldVisitingPerson:
		s.VisitingPerson = value
	case FieldPurpose:
		s.Purpose = value
	case FieldPhoneNumber:
		s.PhoneNumber = value
	case FieldSignature:
		s.Signature = value
	default:
		if s.Extra == nil {
			s.Extra = make(map[string]string)
		}
		s.Extra[fieldID] = value
	}
}

// Trimmed returns a copy with surrounding whitespace removed from every value.
func (s Submission) Trimmed() Submission {
	out := s
	out.VisitorName = strings.TrimSpace(s.VisitorName)
	out.VisitingPerson = strings.TrimSpace(s.VisitingPerson)
	out.Purpose = strings.TrimSpace(s.Purpose)
	out.PhoneNumber = strings.TrimSpace(s.PhoneNumber)
	out.Signature = strings.TrimSpace(s.Signature)
	out.FacilityID = strings.TrimSpace(s.FacilityID)
	if s.Extra != nil {
		out.Extra = make(map[string]string, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = strings.TrimSpace(v)
		}
	}
	return out
}

// ValidationError reports a missing or invalid form value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var defaultMessages = map[string]string{
	FieldVisitorName:    "name is required",
	FieldVisitingPerson: "person being visited is required",
	FieldPurpose:        "purpose of visit is required",
	FieldPhoneNumber:    "phone number is required",
	FieldSignature:      "signature is required",
}

// Validate checks the trimmed submission. The fixed fields are always
// required; configured fields flagged required must be non-empty too.
// The first failure in form order is returned as a *ValidationError.
func Validate(sub Submission, fields []config.FormField) error {
	sub = sub.Trimmed()

	failed := make(map[string]bool)
	if err := validate.Struct(sub); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("validating submission: %w", err)
		}
		for _, fe := range verrs {
			failed[fe.Field()] = true
		}
	}
	for _, f := range fields {
		if !f.Required {
			continue
		}
		if v, _ := sub.Value(f.ID); v == "" {
			failed[f.ID] = true
		}
	}
	if len(failed) == 0 {
		return nil
	}

	for _, id := range formOrder(fields) {
		if !failed[id] {
			continue
		}
		msg, ok := defaultMessages[id]
		if !ok {
			msg = "is required"
			if f, found := fieldByID(fields, id); found && f.Label != "" {
				msg = f.Label + " is required"
			}
		}
		return &ValidationError{Field: id, Message: msg}
	}
	return nil
}

// formOrder lists configured field ids in display order, followed by any
// fixed field the form does not configure.
func formOrder(fields []config.FormField) []string {
	sorted := config.SortFields(fields)
	order := make([]string, 0, len(sorted)+len(fixedFields))
	seen := make(map[string]bool, len(sorted))
	for _, f := range sorted {
		order = append(order, f.ID)
		seen[f.ID] = true
	}
	for _, id := range fixedFields {
		if !seen[id] {
			order = append(order, id)
		}
	}
	return order
}

func fieldByID(fields []config.FormField, id string) (config.FormField, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return config.FormField{}, false
}

// StripDataURI removes a leading data:image/<type>;base64, prefix.
func StripDataURI(data string) string {
	if !strings.HasPrefix(data, "data:image/") {
		return data
	}
	_, payload, ok := strings.Cut(data, ";base64,")
	if !ok {
		return data
	}
	return payload
}

// DecodeSignature decodes a signature payload and reports its content type.
// Bare base64 payloads are assumed to be PNG.
func DecodeSignature(data string) ([]byte, string, error) {
	contentType := "image/png"
	if rest, ok := strings.CutPrefix(data, "data:"); ok {
		if mediaType, _, found := strings.Cut(rest, ";base64,"); found && strings.HasPrefix(mediaType, "image/") {
			contentType = mediaType
		}
	}

	raw, err := base64.StdEncoding.DecodeString(StripDataURI(data))
	if err != nil {
		return nil, "", fmt.Errorf("decoding signature: %w", err)
	}
	if len(raw) == 0 {
		return nil, "", fmt.Errorf("decoding signature: empty payload")
	}
	return raw, contentType, nil
}
