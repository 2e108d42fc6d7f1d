package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Record is one master-data entity owned by a tenant scope.
type Record struct {
	ID          string
	Kind        string
	KeyField    string
	Key         string
	Description string
	Fields      map[string]string
	CompanyID   string
	LocationID  string
	CreatedBy   string
	UpdatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Scope returns the record's tenant scope.
func (r Record) Scope() Scope {
	return Scope{CompanyID: r.CompanyID, LocationID: r.LocationID}
}

// Snapshot renders the record the way clients see it: the key under the
// kind's key field and extra fields flattened next to it.
func (r Record) Snapshot() map[string]any {
	out := make(map[string]any, len(r.Fields)+10)
	for k, v := range r.Fields {
		out[k] = v
	}

	keyField := r.KeyField
	if keyField == "" {
		keyField = "key"
	}

	out["id"] = r.ID
	out[keyField] = r.Key
	out["description"] = r.Description
	out["companyId"] = r.CompanyID
	out["locationId"] = r.LocationID
	out["createdBy"] = r.CreatedBy
	out["createdAt"] = r.CreatedAt
	out["updatedAt"] = r.UpdatedAt
	if r.UpdatedBy != "" {
		out["updatedBy"] = r.UpdatedBy
	}

	return out
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Snapshot())
}

// RecordInput is the writable part of a record after trimming.
type RecordInput struct {
	Key         string
	Description string
	Fields      map[string]string
}

// DecodeRecordInput pulls a kind's writable fields out of a JSON body,
// trims them and validates presence and length. All problems are reported
// together in a *ValidationError.
func DecodeRecordInput(kind Kind, body map[string]any) (RecordInput, error) {
	kind = kind.withDefaults()
	verr := &ValidationError{}

	in := RecordInput{Fields: make(map[string]string, len(kind.Fields))}
	in.Key = stringField(body, kind.KeyField, kind.KeyLabel, verr)
	in.Description = stringField(body, "description", "Description", verr)

	if in.Key == "" {
		verr.Add("%s is required", kind.KeyLabel)
	} else if utf8.RuneCountInString(in.Key) > kind.KeyMaxLen {
		verr.Problems = append(verr.Problems, ErrFieldTooLong(kind.KeyLabel, kind.KeyMaxLen))
	}

	if utf8.RuneCountInString(in.Description) > kind.DescriptionMaxLen {
		verr.Problems = append(verr.Problems, ErrFieldTooLong("Description", kind.DescriptionMaxLen))
	}

	for _, f := range kind.Fields {
		v := stringField(body, f.Name, f.Label, verr)
		switch {
		case v == "" && f.Required:
			verr.Add("%s is required", f.Label)
		case f.MaxLen > 0 && utf8.RuneCountInString(v) > f.MaxLen:
			verr.Problems = append(verr.Problems, ErrFieldTooLong(f.Label, f.MaxLen))
		}
		if v != "" {
			in.Fields[f.Name] = v
		}
	}

	if err := verr.Err(); err != nil {
		return RecordInput{}, err
	}

	return in, nil
}

// StringValue returns a trimmed string value from a JSON body, or "" when the
// key is absent or not a string.
func StringValue(body map[string]any, name string) string {
	s, _ := body[name].(string)
	return strings.TrimSpace(s)
}

func stringField(body map[string]any, name, label string, verr *ValidationError) string {
	raw, ok := body[name]
	if !ok || raw == nil {
		return ""
	}

	s, ok := raw.(string)
	if !ok {
		verr.Add("%s must be a string", label)
		return ""
	}

	return strings.TrimSpace(s)
}

// ScopeFromBody reads companyId and locationId from a JSON body.
func ScopeFromBody(body map[string]any) Scope {
	return Scope{CompanyID: StringValue(body, "companyId"), LocationID: StringValue(body, "locationId")}
}

// String implements fmt.Stringer for log fields.
func (r Record) String() string {
	return fmt.Sprintf("%s/%s(%s)", r.Kind, r.ID, r.Key)
}
