package model

import "strings"

// Submission is the typed worker input for one trial task. The concrete
// types below are the only implementations.
type Submission interface {
	// Category returns the task category the submission shape belongs to.
	Category() Category
	// FilledFields counts fields holding non-blank values.
	FilledFields() int

	sealed()
}

// DataRecord is one data entry slot.
type DataRecord struct {
	Name  string `json:"name" yaml:"name"`
	Phone string `json:"phone" yaml:"phone"`
	Email string `json:"email" yaml:"email"`
	City  string `json:"city" yaml:"city"`
}

// Empty reports whether every field of the record is blank.
func (r DataRecord) Empty() bool {
	return countFilled(r.Name, r.Phone, r.Email, r.City) == 0
}

// Contact is one contact organization slot.
type Contact struct {
	Name    string `json:"name" yaml:"name"`
	Phone   string `json:"phone" yaml:"phone"`
	Email   string `json:"email" yaml:"email"`
	Company string `json:"company" yaml:"company"`
}

// Empty reports whether every field of the contact is blank.
func (c Contact) Empty() bool {
	return countFilled(c.Name, c.Phone, c.Email, c.Company) == 0
}

// DataEntrySubmission holds typed records for a DATA_ENTRY task.
type DataEntrySubmission struct {
	Records []DataRecord `json:"records" yaml:"records"`
}

func (DataEntrySubmission) Category() Category { return CategoryDataEntry }

func (s DataEntrySubmission) FilledFields() int {
	n := 0
	for _, r := range s.Records {
		n += countFilled(r.Name, r.Phone, r.Email, r.City)
	}
	return n
}

func (DataEntrySubmission) sealed() {}

// ContentSubmission holds the written text for a CONTENT task.
type ContentSubmission struct {
	Text string `json:"text" yaml:"text"`
}

func (ContentSubmission) Category() Category { return CategoryContent }

func (s ContentSubmission) FilledFields() int { return countFilled(s.Text) }

func (ContentSubmission) sealed() {}

// OrganizationSubmission holds the cleaned contacts for an ORGANIZATION task.
type OrganizationSubmission struct {
	Contacts []Contact `json:"contacts" yaml:"contacts"`
}

func (OrganizationSubmission) Category() Category { return CategoryOrganization }

func (s OrganizationSubmission) FilledFields() int {
	n := 0
	for _, c := range s.Contacts {
		n += countFilled(c.Name, c.Phone, c.Email, c.Company)
	}
	return n
}

func (OrganizationSubmission) sealed() {}

// GenericSubmission carries free-form fields for categories without a
// dedicated evaluator.
type GenericSubmission struct {
	Kind   Category          `json:"kind,omitempty" yaml:"kind,omitempty"`
	Fields map[string]string `json:"fields" yaml:"fields"`
}

func (s GenericSubmission) Category() Category { return s.Kind }

func (s GenericSubmission) FilledFields() int {
	n := 0
	for _, v := range s.Fields {
		n += countFilled(v)
	}
	return n
}

func (GenericSubmission) sealed() {}

func countFilled(values ...string) int {
	n := 0
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

// EmptySubmission returns the blank typed submission for category.
func EmptySubmission(category Category) Submission {
	switch category {
	case CategoryDataEntry:
		return DataEntrySubmission{}
	case CategoryContent:
		return ContentSubmission{}
	case CategoryOrganization:
		return OrganizationSubmission{}
	default:
		return GenericSubmission{Kind: category}
	}
}
