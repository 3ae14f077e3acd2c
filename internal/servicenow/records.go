package servicenow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/evcraddock/visitor-kiosk/internal/config"
	"github.com/evcraddock/visitor-kiosk/internal/visitor"
)

// Visitor table columns written or read outside the form mapping.
const (
	ColumnSysID         = "sys_id"
	ColumnCreatedOn     = "sys_created_on"
	ColumnVisitorName   = "u_vistor_name"
	ColumnSignInTime    = "u_sign_in_time"
	ColumnSignOutTime   = "u_sign_out_time"
	ColumnSignedOutName = "u_visitor_name_signed_out"
	ColumnFacility      = "u_facility"
	ColumnRating        = "u_rating"
)

const findLimit = 10

var validate = validator.New()

// Record is a visitor record as returned by the table API.
type Record struct {
	ID            string            `json:"sys_id"`
	VisitorName   string            `json:"visitor_name"`
	SignInTime    string            `json:"sign_in_time,omitempty"`
	SignOutTime   string            `json:"sign_out_time,omitempty"`
	SignedOutName string            `json:"signed_out_name,omitempty"`
	FacilityID    string            `json:"facility_id,omitempty"`
	Rating        string            `json:"rating,omitempty"`
	CreatedOn     string            `json:"created_on,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
	// SameDay is false when no record from today matched and the most
	// recent record was returned instead.
	SameDay bool `json:"same_day"`
}

// Open reports whether the visitor has not signed out yet.
func (r *Record) Open() bool {
	return r.SignOutTime == ""
}

// SignInResult identifies what a sign-in created.
type SignInResult struct {
	RecordID     string `json:"record_id"`
	AttachmentID string `json:"attachment_id"`
}

// SignOutResult identifies the record a sign-out closed.
type SignOutResult struct {
	RecordID   string `json:"record_id"`
	FacilityID string `json:"facility_id,omitempty"`
	SameDay    bool   `json:"same_day"`
}

func (c *Client) nameColumn() string {
	for _, f := range c.fields {
		if f.ID == visitor.FieldVisitorName && f.ServiceNowField != "" {
			return f.ServiceNowField
		}
	}
	return ColumnVisitorName
}

// CreateVisitorRecord creates a sign-in record and returns its sys_id.
// Every configured field with a backend column is copied from sub, except
// the signature, which is attached separately.
func (c *Client) CreateVisitorRecord(ctx context.Context, sub visitor.Submission) (string, error) {
	sub = sub.Trimmed()

	record := map[string]string{
		ColumnSignInTime: c.timestamp(),
	}
	for _, f := range c.fields {
		if f.ServiceNowField == "" || f.Type == config.FieldTypeSignature || f.ServiceNowField == c.signatureField {
			continue
		}
		if v, ok := sub.Value(f.ID); ok {
			record[f.ServiceNowField] = v
		}
	}
	if sub.FacilityID != "" {
		record[ColumnFacility] = sub.FacilityID
	}

	var resp envelope[struct {
		SysID string `json:"sys_id"`
	}]
	if err := c.sendJSON(ctx, http.MethodPost, "create record", tablePath(c.table), record, &resp); err != nil {
		return "", err
	}
	if resp.Result.SysID == "" {
		return "", fmt.Errorf("create record: response missing sys_id")
	}

	c.logger.Info("visitor record created", "record_id", resp.Result.SysID, "facility_id", sub.FacilityID)
	return resp.Result.SysID, nil
}

// SubmitVisitorSignIn creates the record then attaches the signature. A
// failed upload leaves the record in place; its id is still returned.
func (c *Client) SubmitVisitorSignIn(ctx context.Context, sub visitor.Submission) (SignInResult, error) {
	recordID, err := c.CreateVisitorRecord(ctx, sub)
	if err != nil {
		return SignInResult{}, err
	}

	attachmentID, err := c.UploadSignature(ctx, recordID, sub.Signature)
	if err != nil {
		c.logger.Error("signature upload failed, record left without signature", "record_id", recordID, "error", err)
		return SignInResult{RecordID: recordID}, err
	}

	return SignInResult{RecordID: recordID, AttachmentID: attachmentID}, nil
}

// FindTodaysVisitorRecord returns the most recent record for name created
// today in the client's location. When none is from today the most recent
// record is returned with SameDay unset. It returns nil when the visitor
// has no records at all.
func (c *Client) FindTodaysVisitorRecord(ctx context.Context, name string) (*Record, error) {
	name = strings.TrimSpace(name)

	q := url.Values{}
	q.Set("sysparm_query", fmt.Sprintf("%s=%s^ORDERBYDESC%s", c.nameColumn(), escapeQueryValue(name), ColumnCreatedOn))
	q.Set("sysparm_limit", strconv.Itoa(findLimit))
	q.Set("sysparm_exclude_reference_link", "true")

	var resp envelope[[]map[string]any]
	if err := c.get(ctx, "query records", tablePath(c.table), q, &resp); err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 {
		c.logger.Info("no visitor record found", "visitor", name)
		return nil, nil
	}

	today := midnight(c.now().In(c.loc))
	for _, row := range resp.Result {
		rec := c.recordFromRow(row)
		stamp := rec.CreatedOn
		if stamp == "" {
			stamp = rec.SignInTime
		}
		t, err := time.ParseInLocation(TimeLayout, stamp, c.loc)
		if err != nil {
			c.logger.Debug("skipping record with unparsable timestamp", "record_id", rec.ID, "timestamp", stamp)
			continue
		}
		if midnight(t).Equal(today) {
			rec.SameDay = true
			return rec, nil
		}
	}

	rec := c.recordFromRow(resp.Result[0])
	c.logger.Warn("no visitor record from today, falling back to most recent",
		"visitor", name,
		"record_id", rec.ID,
		"created_on", rec.CreatedOn,
	)
	return rec, nil
}

// UpdateVisitorSignOut stamps the sign-out name and time on a record.
func (c *Client) UpdateVisitorSignOut(ctx context.Context, recordID, name string) error {
	body := map[string]string{
		ColumnSignedOutName: strings.TrimSpace(name),
		ColumnSignOutTime:   c.timestamp(),
	}
	if err := c.sendJSON(ctx, http.MethodPatch, "update sign-out", recordPath(c.table, recordID), body, nil); err != nil {
		return err
	}
	c.logger.Info("sign-out recorded", "record_id", recordID)
	return nil
}

// SubmitVisitorSignOut finds the visitor's open record and signs it out.
func (c *Client) SubmitVisitorSignOut(ctx context.Context, name string) (SignOutResult, error) {
	rec, err := c.FindTodaysVisitorRecord(ctx, name)
	if err != nil {
		return SignOutResult{}, err
	}
	if rec == nil {
		return SignOutResult{}, ErrNotFound
	}
	if !rec.Open() {
		return SignOutResult{}, ErrAlreadySignedOut
	}

	if err := c.UpdateVisitorSignOut(ctx, rec.ID, name); err != nil {
		return SignOutResult{}, err
	}
	return SignOutResult{RecordID: rec.ID, FacilityID: rec.FacilityID, SameDay: rec.SameDay}, nil
}

// UpdateVisitorRating stores a 1-5 rating on a record.
func (c *Client) UpdateVisitorRating(ctx context.Context, recordID string, rating int) error {
	if err := validate.Var(rating, "min=1,max=5"); err != nil {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}
	body := map[string]string{ColumnRating: strconv.Itoa(rating)}
	if err := c.sendJSON(ctx, http.MethodPatch, "update rating", recordPath(c.table, recordID), body, nil); err != nil {
		return err
	}
	c.logger.Info("rating recorded", "record_id", recordID, "rating", rating)
	return nil
}

// Ping checks that the visitor table is reachable with the configured
// credentials.
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("sysparm_limit", "1")
	q.Set("sysparm_fields", ColumnSysID)
	return c.get(ctx, "ping", tablePath(c.table), q, nil)
}

func recordPath(table, id string) string {
	return tablePath(table) + "/" + url.PathEscape(id)
}

func (c *Client) recordFromRow(row map[string]any) *Record {
	fields := make(map[string]string, len(row))
	for k, v := range row {
		fields[k] = stringValue(v)
	}
	return &Record{
		ID:            fields[ColumnSysID],
		VisitorName:   fields[c.nameColumn()],
		SignInTime:    fields[ColumnSignInTime],
		SignOutTime:   fields[ColumnSignOutTime],
		SignedOutName: fields[ColumnSignedOutName],
		FacilityID:    fields[ColumnFacility],
		Rating:        fields[ColumnRating],
		CreatedOn:     fields[ColumnCreatedOn],
		Fields:        fields,
	}
}

// stringValue flattens a table API value. Reference columns arrive as
// {"link": ..., "value": ...} unless reference links are excluded.
func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any:
		return stringValue(t["value"])
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// escapeQueryValue doubles carets so a value cannot end the encoded query
// condition it is placed in.
func escapeQueryValue(s string) string {
	return strings.ReplaceAll(s, "^", "^^")
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
