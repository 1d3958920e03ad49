package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// maxFieldSlots bounds the slot index accepted from flat field maps.
const maxFieldSlots = 64

// SubmissionFromFields converts the flat form-field shape used by web
// clients (entry_0_name, contact_2_email, content, ...) into the typed
// submission for category. Unknown keys are ignored; numbers are formatted
// as strings.
func SubmissionFromFields(category Category, fields map[string]any) Submission {
	switch category {
	case CategoryDataEntry:
		var s DataEntrySubmission
		for key, raw := range fields {
			idx, field, ok := splitSlotKey(key, "entry_")
			if !ok {
				continue
			}
			for len(s.Records) <= idx {
				s.Records = append(s.Records, DataRecord{})
			}
			r := &s.Records[idx]
			switch field {
			case "name":
				r.Name = stringify(raw)
			case "phone":
				r.Phone = stringify(raw)
			case "email":
				r.Email = stringify(raw)
			case "city":
				r.City = stringify(raw)
			}
		}
		return s
	case CategoryOrganization:
		var s OrganizationSubmission
		for key, raw := range fields {
			idx, field, ok := splitSlotKey(key, "contact_")
			if !ok {
				continue
			}
			for len(s.Contacts) <= idx {
				s.Contacts = append(s.Contacts, Contact{})
			}
			c := &s.Contacts[idx]
			switch field {
			case "name":
				c.Name = stringify(raw)
			case "phone":
				c.Phone = stringify(raw)
			case "email":
				c.Email = stringify(raw)
			case "company":
				c.Company = stringify(raw)
			}
		}
		return s
	case CategoryContent:
		for _, key := range []string{"content", "text", "article"} {
			if raw, ok := fields[key]; ok {
				return ContentSubmission{Text: stringify(raw)}
			}
		}
		return ContentSubmission{}
	default:
		out := GenericSubmission{Kind: category, Fields: make(map[string]string, len(fields))}
		for key, raw := range fields {
			out.Fields[key] = stringify(raw)
		}
		return out
	}
}

// splitSlotKey parses "<prefix><index>_<field>".
func splitSlotKey(key, prefix string) (int, string, bool) {
	if !strings.HasPrefix(key, prefix) {
		return 0, "", false
	}
	rest := strings.TrimPrefix(key, prefix)
	sep := strings.Index(rest, "_")
	if sep <= 0 {
		return 0, "", false
	}
	idx, err := strconv.Atoi(rest[:sep])
	if err != nil || idx < 0 || idx >= maxFieldSlots {
		return 0, "", false
	}
	return idx, strings.ToLower(rest[sep+1:]), true
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
