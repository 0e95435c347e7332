package channel

import (
	"fmt"
	"time"

	"github.com/kaptinlin/jsonschema"

	"juno-ai/internal/domain"
)

const verifyTimeout = 10 * time.Second

// mustCompileSchema compiles a field schema at package init. Schemas are
// literals, so a failure is a programming error.
func mustCompileSchema(schemaJSON string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("compile field schema: %v", err))
	}
	return schema
}

// SpecFor returns the field spec of a supported platform without keeping a
// verifier around. Callers that need the Secret flags (to decide which
// fields belong in the credentials file) go through here.
func SpecFor(id domain.PlatformID) (domain.PlatformSpec, bool) {
	switch id {
	case domain.PlatformTelegram:
		return NewTelegramVerifier(nil).Spec(), true
	case domain.PlatformWhatsApp:
		return NewWhatsAppVerifier(nil).Spec(), true
	case domain.PlatformDiscord:
		return NewDiscordVerifier(nil).Spec(), true
	case domain.PlatformSlack:
		return NewSlackVerifier(nil).Spec(), true
	case domain.PlatformWebhook:
		return NewWebhookVerifier(nil).Spec(), true
	}
	return domain.PlatformSpec{}, false
}

// SplitFields partitions entered fields by the platform's Secret flags:
// public fields are safe for config.yaml, secret ones belong in the
// credentials file. Fields of an unknown platform are treated as secret.
func SplitFields(id domain.PlatformID, fields map[string]string) (public, secret map[string]string) {
	public = make(map[string]string)
	secret = make(map[string]string)
	spec, ok := SpecFor(id)
	if !ok {
		for k, v := range fields {
			secret[k] = v
		}
		return public, secret
	}
	secretNames := make(map[string]bool, len(spec.Fields))
	for _, f := range spec.Fields {
		if f.Secret {
			secretNames[f.Name] = true
		}
	}
	for k, v := range fields {
		if secretNames[k] {
			secret[k] = v
		} else {
			public[k] = v
		}
	}
	return public, secret
}

// validateFields checks the entered fields against the platform's JSON
// schema: formats and lengths beyond the generic non-empty gate.
func validateFields(schema *jsonschema.Schema, fields map[string]string) error {
	doc := make(map[string]any, len(fields))
	for k, v := range fields {
		doc[k] = v
	}
	result := schema.Validate(doc)
	if !result.IsValid() {
		return domain.NewFlowError("channel.validateFields", domain.ErrValidation, fmt.Sprintf("%s", result.Error()))
	}
	return nil
}
