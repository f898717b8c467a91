package domain

// =============================================================================
// Step Outcomes
// =============================================================================

// StepName identifies a pipeline state.
type StepName string

const (
	StepValidate              StepName = "validate"
	StepCreateAccount         StepName = "create_account"
	StepConfigureDomain       StepName = "configure_domain"
	StepSendWelcomeEmail      StepName = "send_welcome_email"
	StepSetupSSL              StepName = "setup_ssl"
	StepDeployWelcomePage     StepName = "deploy_welcome_page"
	StepSendDomainConfigEmail StepName = "send_domain_config_email"
)

// StepStatus classifies how a step ended.
type StepStatus string

const (
	StepSuccess      StepStatus = "success"
	StepSoftFailure  StepStatus = "soft-failure"
	StepFatalFailure StepStatus = "fatal-failure"
)

// StepOutcome tags a step with its status and an optional message.
type StepOutcome struct {
	Step    StepName   `json:"step"`
	Status  StepStatus `json:"status"`
	Message string     `json:"message,omitempty"`
}

// =============================================================================
// Provisioning Result
// =============================================================================

// EmailFlags records which notifications were delivered.
type EmailFlags struct {
	WelcomeEmailSent      bool `json:"welcomeEmailSent"`
	DomainConfigEmailSent bool `json:"domainConfigEmailSent"`
}

// ProvisioningResult is the terminal value of a pipeline run.
// Errors is populated only when the run aborted.
type ProvisioningResult struct {
	Success        bool                `json:"success"`
	AccountDetails *AccountDetails     `json:"accountDetails,omitempty"`
	Emails         EmailFlags          `json:"emails"`
	Warnings       []string            `json:"warnings"`
	Errors         []string            `json:"errors"`
	Steps          []StepOutcome       `json:"steps"`
	Credentials    *AccountCredentials `json:"-"`
}

// NewFailedResult builds an aborted result carrying a single fatal reason.
func NewFailedResult(reason string, steps []StepOutcome) ProvisioningResult {
	return ProvisioningResult{
		Success:  false,
		Warnings: []string{},
		Errors:   []string{reason},
		Steps:    steps,
	}
}

// Warned reports whether any soft step failed.
func (r ProvisioningResult) Warned() bool {
	return len(r.Warnings) > 0
}
