package projects

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/gitcaptain/internal/decisions"
	"github.com/temirov/gitcaptain/internal/repos/shared"
)

const (
	// ConfigurationActionSave writes the snapshot back into the configuration file.
	ConfigurationActionSave = "save"
	// ConfigurationActionDisplay prints the snapshot as JSON.
	ConfigurationActionDisplay = "display"

	storeNotConfiguredMessageConstant  = "configuration store not configured"
	updaterDecisionsMissingMessage     = "configuration updater decision provider not configured"
	configurationActionPromptConstant  = "Save the updated configuration or display it"
	configurationActionSubjectConstant = "configuration"
	saveActionLabelConstant            = "Save to configuration file"
	displayActionLabelConstant         = "Display as JSON"
	renderConfigurationErrorTemplate   = "render configuration: %w"
	backupFailedMessageConstant        = "Configuration backup failed"
	backupCreatedMessageConstant       = "Configuration backed up"
	configurationSavedMessageConstant  = "Configuration saved"
	configurationUnchangedMessage      = "Configuration unchanged; nothing to update"
	configurationDisplayHeaderConstant = "\nUPDATED CONFIGURATION\n=====================\n"
	configurationDisplayFooterConstant = "\n"
	configurationSavedReportTemplate   = "Configuration saved to %s\n"
	logFieldConfigurationPathConstant  = "config_path"
	logFieldBackupPathConstant         = "backup_path"
)

var (
	// ErrStoreNotConfigured indicates the updater was constructed without a store.
	ErrStoreNotConfigured = errors.New(storeNotConfiguredMessageConstant)
	// ErrUpdaterDecisionsNotConfigured indicates the updater was constructed without a decision provider.
	ErrUpdaterDecisionsNotConfigured = errors.New(updaterDecisionsMissingMessage)
)

// UpdateOutcome reports what the updater did.
type UpdateOutcome struct {
	Action     string
	BackupPath string
	Saved      bool
}

// ConfigurationUpdater persists snapshots produced by tasks such as the remote changer.
type ConfigurationUpdater struct {
	store     *Store
	decisions decisions.Provider
	reporter  shared.Reporter
	logger    *zap.Logger
}

// NewConfigurationUpdater constructs a ConfigurationUpdater.
func NewConfigurationUpdater(store *Store, decisionProvider decisions.Provider, reporter shared.Reporter, logger *zap.Logger) (*ConfigurationUpdater, error) {
	if store == nil {
		return nil, ErrStoreNotConfigured
	}
	if decisionProvider == nil {
		return nil, ErrUpdaterDecisionsNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigurationUpdater{store: store, decisions: decisionProvider, reporter: reporter, logger: logger}, nil
}

// Update backs up the configuration file and then saves or displays the updated snapshot.
// A failed backup is logged and does not stop the update. Snapshots equal to the original are left alone.
func (updater *ConfigurationUpdater) Update(executionContext context.Context, configurationPath string, original Snapshot, updated Snapshot) (UpdateOutcome, error) {
	outcome := UpdateOutcome{}
	if updated.Equal(original) {
		updater.logger.Info(configurationUnchangedMessage)
		return outcome, nil
	}

	backupPath, backupError := updater.store.Backup(configurationPath)
	if backupError != nil {
		updater.logger.Warn(backupFailedMessageConstant, zap.String(logFieldConfigurationPathConstant, configurationPath), zap.Error(backupError))
	} else {
		outcome.BackupPath = backupPath
		updater.logger.Info(backupCreatedMessageConstant, zap.String(logFieldBackupPathConstant, backupPath))
	}

	action, choiceError := updater.decisions.Choose(executionContext, decisions.ChoiceRequest{
		Key:     decisions.KeyConfigurationAction,
		Subject: configurationActionSubjectConstant,
		Prompt:  configurationActionPromptConstant,
		Options: []decisions.Option{
			{Value: ConfigurationActionSave, Label: saveActionLabelConstant},
			{Value: ConfigurationActionDisplay, Label: displayActionLabelConstant},
		},
		Default: ConfigurationActionSave,
	})
	if choiceError != nil {
		return outcome, choiceError
	}
	outcome.Action = action

	if action == ConfigurationActionDisplay {
		rendered, renderError := updater.store.Render(updated)
		if renderError != nil {
			return outcome, fmt.Errorf(renderConfigurationErrorTemplate, renderError)
		}
		updater.printf(configurationDisplayHeaderConstant)
		updater.printf("%s", rendered)
		updater.printf(configurationDisplayFooterConstant)
		return outcome, nil
	}

	if saveError := updater.store.Save(configurationPath, updated); saveError != nil {
		return outcome, saveError
	}
	outcome.Saved = true
	updater.logger.Info(configurationSavedMessageConstant, zap.String(logFieldConfigurationPathConstant, configurationPath))
	updater.printf(configurationSavedReportTemplate, configurationPath)
	return outcome, nil
}

func (updater *ConfigurationUpdater) printf(format string, arguments ...any) {
	if updater.reporter == nil {
		return
	}
	updater.reporter.Printf(format, arguments...)
}
