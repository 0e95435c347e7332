package usecase

import "juno-ai/internal/domain"

// providerChosen is the minimum the provider stage needs before Continue.
func providerChosen(d *domain.ConfigurationDraft) bool {
	return d.SelectedProvider != ""
}

// credentialNeeded gates entry to the credential stage: providers that run
// without an API key (ollama) skip it transparently.
func credentialNeeded(d *domain.ConfigurationDraft) bool {
	if d.SelectedProvider == "" {
		return false
	}
	info, ok := domain.ProviderByID(d.SelectedProvider)
	return ok && info.RequiresCredential()
}

func credentialEntered(d *domain.ConfigurationDraft) bool {
	return d.HasCredential || !d.PendingCredential.Empty()
}

func modelChosen(d *domain.ConfigurationDraft) bool {
	return d.SelectedModel != ""
}

// WizardStages is the linear first-run sequence. Messaging, soul, daemon and
// budget are skippable: the minimum viable setup is a provider with a model.
func WizardStages() []domain.StageDefinition {
	return []domain.StageDefinition{
		{ID: domain.StageWelcome, Title: "Welcome", Order: 0, Skippable: false},
		{ID: domain.StageProvider, Title: "AI Provider", Order: 10, CanAdvance: providerChosen},
		{ID: domain.StageCredential, Title: "API Key", Order: 20, Entry: credentialNeeded, CanAdvance: credentialEntered},
		{ID: domain.StageModel, Title: "Model", Order: 30, Entry: providerChosen, CanAdvance: modelChosen},
		{ID: domain.StageMessaging, Title: "Messaging", Order: 40, Skippable: true},
		{ID: domain.StageSoul, Title: "Soul", Order: 50, Skippable: true},
		{ID: domain.StageDaemon, Title: "Daemon", Order: 60, Skippable: true},
		{ID: domain.StageBudget, Title: "Budget", Order: 70, Skippable: true},
		{ID: domain.StageSummary, Title: "Summary", Order: 80},
	}
}

// DashboardStages is the jump-enabled panel set of the settings surface.
// Credential and model selection fold into the provider panel there, so the
// set is flatter than the wizard's.
func DashboardStages() []domain.StageDefinition {
	return []domain.StageDefinition{
		{ID: domain.StageProvider, Title: "Provider", Order: 10, CanAdvance: providerChosen},
		{ID: domain.StageMessaging, Title: "Messaging", Order: 20, Skippable: true},
		{ID: domain.StageSoul, Title: "Soul", Order: 30, Skippable: true},
		{ID: domain.StageDaemon, Title: "Daemon", Order: 40, Skippable: true},
		{ID: domain.StageBudget, Title: "Budget", Order: 50, Skippable: true},
	}
}
