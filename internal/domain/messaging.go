package domain

// PlatformID identifies a messaging platform.
type PlatformID string

const (
	PlatformTelegram PlatformID = "telegram"
	PlatformWhatsApp PlatformID = "whatsapp"
	PlatformDiscord  PlatformID = "discord"
	PlatformSlack    PlatformID = "slack"
	PlatformWebhook  PlatformID = "webhook"
)

// PlatformField describes one input field of a platform's credential form.
type PlatformField struct {
	Name   string
	Label  string
	Secret bool
}

// PlatformSpec describes a platform's field set. The engine enforces the
// generic non-empty gate over Required fields; anything platform-specific
// (formats, lengths) lives in the verifier's JSON schema.
type PlatformSpec struct {
	ID     PlatformID
	Name   string
	Fields []PlatformField
}

// MissingFields returns the labels of required fields that are empty in
// values. All declared fields are required.
func (s PlatformSpec) MissingFields(values map[string]string) []string {
	var missing []string
	for _, f := range s.Fields {
		if values[f.Name] == "" {
			missing = append(missing, f.Label)
		}
	}
	return missing
}

// VerifyResult is the outcome of a platform verification call.
type VerifyResult struct {
	OK       bool
	Identity string // external display identity, e.g. bot @username
	Detail   string // backend-provided failure detail
}
