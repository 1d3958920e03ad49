package model

// Envelope is the wire form of a submission shared by the HTTP API and
// submission files. Fields carries flat form input (entry_0_name, ...);
// when it is nil the typed member matching the task category is used.
type Envelope struct {
	SubmissionID string         `json:"submission_id,omitempty" yaml:"submission_id,omitempty"`
	WorkerID     string         `json:"worker_id,omitempty" yaml:"worker_id,omitempty"`
	TaskID       string         `json:"task_id" yaml:"task_id"`
	MinutesSpent float64        `json:"minutes_spent" yaml:"minutes_spent"`
	Fields       map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`
	Records      []DataRecord   `json:"records,omitempty" yaml:"records,omitempty"`
	Text         string         `json:"text,omitempty" yaml:"text,omitempty"`
	Contacts     []Contact      `json:"contacts,omitempty" yaml:"contacts,omitempty"`
}

// Submission builds the typed submission for category.
func (e Envelope) Submission(category Category) Submission {
	if e.Fields != nil {
		return SubmissionFromFields(category, e.Fields)
	}
	switch category {
	case CategoryDataEntry:
		return DataEntrySubmission{Records: e.Records}
	case CategoryContent:
		return ContentSubmission{Text: e.Text}
	case CategoryOrganization:
		return OrganizationSubmission{Contacts: e.Contacts}
	default:
		fields := map[string]string{}
		if e.Text != "" {
			fields["text"] = e.Text
		}
		return GenericSubmission{Kind: category, Fields: fields}
	}
}
