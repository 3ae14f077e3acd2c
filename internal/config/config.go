// Package config defines the kiosk configuration document: form fields,
// user-facing text, backend connection and kiosk settings.
package config

import (
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Field types with special handling.
const (
	FieldTypeSignature = "signature"
	FieldTypeDropdown  = "dropdown"
	FieldTypeTextarea  = "textarea"
)

// Attachment upload modes.
const (
	AttachmentBlob = "blob"
	AttachmentFile = "file"
)

const (
	defaultLocationTable  = "cmn_location"
	defaultSignatureField = "u_signature"
	defaultPort           = 8080
	defaultLogLevel       = "info"
)

// Config is the whole configuration document.
type Config struct {
	Version        string         `json:"version" yaml:"version"`
	VersionHistory []VersionEntry `json:"versionHistory" yaml:"versionHistory"`
	App            App            `json:"app" yaml:"app"`
	FormFields     []FormField    `json:"formFields" yaml:"formFields" validate:"dive"`
	Buttons        Buttons        `json:"buttons" yaml:"buttons"`
	Messages       Messages       `json:"messages" yaml:"messages"`
	ServiceNow     ServiceNow     `json:"serviceNow" yaml:"serviceNow"`
	Kiosk          Kiosk          `json:"kiosk" yaml:"kiosk"`
	Log            Log            `json:"log" yaml:"log"`
}

// VersionEntry records one configuration change.
type VersionEntry struct {
	Version   string `json:"version" yaml:"version"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	Changes   string `json:"changes" yaml:"changes"`
}

// App holds the header text.
type App struct {
	Title    string `json:"title" yaml:"title"`
	Subtitle string `json:"subtitle" yaml:"subtitle"`
}

// FormField describes one sign-in form input and its backend column.
type FormField struct {
	ID              string   `json:"id" yaml:"id" validate:"required"`
	Type            string   `json:"type" yaml:"type"`
	Label           string   `json:"label" yaml:"label"`
	Placeholder     string   `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Required        bool     `json:"required" yaml:"required"`
	AutoCapitalize  string   `json:"autoCapitalize,omitempty" yaml:"autoCapitalize,omitempty"`
	KeyboardType    string   `json:"keyboardType,omitempty" yaml:"keyboardType,omitempty"`
	Order           int      `json:"order" yaml:"order"`
	Options         []string `json:"options,omitempty" yaml:"options,omitempty"`
	ServiceNowField string   `json:"serviceNowField,omitempty" yaml:"serviceNowField,omitempty"`
}

// Buttons holds button labels.
type Buttons struct {
	Submit  string `json:"submit" yaml:"submit"`
	SignOut string `json:"signOut" yaml:"signOut"`
}

// Messages holds user-facing message strings.
type Messages struct {
	LocationDetecting        string `json:"locationDetecting" yaml:"locationDetecting"`
	SubmitSuccess            string `json:"submitSuccess" yaml:"submitSuccess"`
	SubmitError              string `json:"submitError" yaml:"submitError"`
	SubmitPending            string `json:"submitPending" yaml:"submitPending"`
	ValidationErrorName      string `json:"validationErrorName" yaml:"validationErrorName"`
	ValidationErrorVisiting  string `json:"validationErrorVisiting" yaml:"validationErrorVisiting"`
	ValidationErrorPurpose   string `json:"validationErrorPurpose" yaml:"validationErrorPurpose"`
	ValidationErrorPhone     string `json:"validationErrorPhone" yaml:"validationErrorPhone"`
	ValidationErrorSignature string `json:"validationErrorSignature" yaml:"validationErrorSignature"`
	ValidationErrorRequired  string `json:"validationErrorRequired" yaml:"validationErrorRequired"`
	SignOutSuccess           string `json:"signOutSuccess" yaml:"signOutSuccess"`
	SignOutError             string `json:"signOutError" yaml:"signOutError"`
	SignOutNotFound          string `json:"signOutNotFound" yaml:"signOutNotFound"`
	AlreadySignedOut         string `json:"alreadySignedOut" yaml:"alreadySignedOut"`
	RatingThanks             string `json:"ratingThanks" yaml:"ratingThanks"`
	RatingError              string `json:"ratingError" yaml:"ratingError"`
}

// ServiceNow holds the record backend connection.
type ServiceNow struct {
	InstanceURL    string `json:"instanceUrl" yaml:"instanceUrl" validate:"required,url"`
	Username       string `json:"username" yaml:"username" validate:"required"`
	Password       string `json:"password" yaml:"password"`
	TableName      string `json:"tableName" yaml:"tableName" validate:"required"`
	LocationTable  string `json:"locationTable,omitempty" yaml:"locationTable,omitempty"`
	SignatureField string `json:"signatureField,omitempty" yaml:"signatureField,omitempty"`
	AttachmentMode string `json:"attachmentMode,omitempty" yaml:"attachmentMode,omitempty" validate:"omitempty,oneof=blob file"`
	TempDir        string `json:"tempDir,omitempty" yaml:"tempDir,omitempty"`
	TimeZone       string `json:"timeZone,omitempty" yaml:"timeZone,omitempty" validate:"omitempty,timezone"`
}

// Kiosk holds settings for the local kiosk server.
type Kiosk struct {
	Port       int      `json:"port,omitempty" yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	AdminToken string   `json:"adminToken,omitempty" yaml:"adminToken,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty" yaml:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude  *float64 `json:"longitude,omitempty" yaml:"longitude,omitempty" validate:"omitempty,longitude"`
}

// Log configures the structured logger.
type Log struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Pretty bool   `json:"pretty,omitempty" yaml:"pretty,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ApplyDefaults fills unset optional values.
func (c *Config) ApplyDefaults() {
	if len(c.FormFields) == 0 {
		c.FormFields = DefaultFormFields()
	}
	if c.ServiceNow.LocationTable == "" {
		c.ServiceNow.LocationTable = defaultLocationTable
	}
	if c.ServiceNow.SignatureField == "" {
		c.ServiceNow.SignatureField = defaultSignatureField
	}
	if c.ServiceNow.AttachmentMode == "" {
		c.ServiceNow.AttachmentMode = AttachmentBlob
	}
	if c.Kiosk.Port == 0 {
		c.Kiosk.Port = defaultPort
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	c.Messages.applyDefaults()
	if c.Buttons.Submit == "" {
		c.Buttons.Submit = "Submit Sign-In"
	}
	if c.Buttons.SignOut == "" {
		c.Buttons.SignOut = "Sign Out"
	}
	if c.App.Title == "" {
		c.App.Title = "Visitor Sign-In"
	}
}

func (m *Messages) applyDefaults() {
	set := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	set(&m.LocationDetecting, "Detecting your location...")
	set(&m.SubmitSuccess, "You're signed in. Welcome!")
	set(&m.SubmitError, "Failed to submit sign-in. Please check your connection and try again.")
	set(&m.SubmitPending, "Your sign-in is already being submitted.")
	set(&m.ValidationErrorName, "Please enter your name")
	set(&m.ValidationErrorVisiting, "Please enter who you are visiting")
	set(&m.ValidationErrorPurpose, "Please enter the purpose of your visit")
	set(&m.ValidationErrorPhone, "Please enter your phone number")
	set(&m.ValidationErrorSignature, "Please provide your signature")
	set(&m.ValidationErrorRequired, "Please complete all required fields")
	set(&m.SignOutSuccess, "Your departure has been recorded.")
	set(&m.SignOutError, "Failed to sign out. Please check your connection and try again.")
	set(&m.SignOutNotFound, "No sign-in record found for today. Please check the name and try again.")
	set(&m.AlreadySignedOut, "This visitor has already signed out.")
	set(&m.RatingThanks, "Thanks for your feedback!")
	set(&m.RatingError, "Failed to record your rating. Please try again.")
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// ValidateDocument checks the parts of the document an editor controls:
// form fields need unique, non-empty ids. Connection settings may come from
// the environment and are checked by Validate at load time.
func (c *Config) ValidateDocument() error {
	if err := validate.Var(c.FormFields, "unique=ID"); err != nil {
		return errors.New("invalid config: form field ids must be unique")
	}
	for i := range c.FormFields {
		if err := validate.Struct(c.FormFields[i]); err != nil {
			return errors.Wrapf(err, "invalid config: form field %d", i)
		}
	}
	return nil
}

// RedactedSecret replaces secrets in documents shown to editors.
const RedactedSecret = "********"

// Redacted returns a copy with the backend password and admin token masked.
func (c Config) Redacted() Config {
	if c.ServiceNow.Password != "" {
		c.ServiceNow.Password = RedactedSecret
	}
	if c.Kiosk.AdminToken != "" {
		c.Kiosk.AdminToken = RedactedSecret
	}
	return c
}

// SortedFields returns the form fields in display order.
func (c *Config) SortedFields() []FormField {
	return SortFields(c.FormFields)
}

// SortFields returns a copy of fields ordered by Order. Ties keep their
// document order.
func SortFields(fields []FormField) []FormField {
	sorted := make([]FormField, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})
	return sorted
}

// Field looks up a form field by id.
func (c *Config) Field(id string) (FormField, bool) {
	for _, f := range c.FormFields {
		if f.ID == id {
			return f, true
		}
	}
	return FormField{}, false
}

// Column returns the backend column mapped to a form field, or fallback.
func (c *Config) Column(fieldID, fallback string) string {
	if f, ok := c.Field(fieldID); ok && f.ServiceNowField != "" {
		return f.ServiceNowField
	}
	return fallback
}

// DefaultFormFields is the stock sign-in form.
func DefaultFormFields() []FormField {
	return []FormField{
		{ID: "visitorName", Type: "text", Label: "Your Name", Placeholder: "Enter your full name", Required: true, AutoCapitalize: "words", Order: 1, ServiceNowField: "u_vistor_name"},
		{ID: "visitingPerson", Type: "text", Label: "Visiting", Placeholder: "Who are you here to see?", Required: true, AutoCapitalize: "words", Order: 2, ServiceNowField: "u_visiting_person"},
		{ID: "purpose", Type: "text", Label: "Purpose of Visit", Placeholder: "Reason for visit", Required: true, AutoCapitalize: "sentences", Order: 3, ServiceNowField: "u_purpose"},
		{ID: "phoneNumber", Type: "phone", Label: "Phone Number", Placeholder: "(555) 123-4567", Required: true, KeyboardType: "phone-pad", Order: 4, ServiceNowField: "u_phone_number"},
		{ID: "signature", Type: FieldTypeSignature, Label: "Signature", Required: true, Order: 5, ServiceNowField: "u_signature"},
	}
}
