package services

import "errors"

// Sentinel errors carry the message shown to the client. Handlers map them to
// status codes with errors.Is.
var (
	ErrEmailTaken             = errors.New("User already exists")
	ErrInvalidCredentials     = errors.New("Invalid credentials")
	ErrAccountDisabled        = errors.New("Account is disabled")
	ErrTwoFactorMisconfigured = errors.New("2FA configuration error")
	ErrInvalidTwoFactorCode   = errors.New("Invalid 2FA verification code")
	ErrTwoFactorCodeRequired  = errors.New("2FA verification code is required")
	ErrTwoFactorSecretMissing = errors.New("2FA is enabled but secret is missing")
	ErrInvalidVerification    = errors.New("Invalid verification code")
	ErrDisableCodeRequired    = errors.New("2FA verification code is required to disable 2FA")
	ErrTwoFactorNotEnabled    = errors.New("2FA is not enabled")
	ErrUserNotFound           = errors.New("User not found")
	ErrInvalidCurrentPassword = errors.New("Invalid current password")
	ErrInvalidPassword        = errors.New("Invalid password")
	ErrInvalidToken           = errors.New("Invalid token")
	ErrEntitlementNotFound    = errors.New("Service entitlement not found. Please ensure you have access to this service.")
	ErrEnterpriseRequired     = errors.New("Enterprise plan required for custom domains")
	ErrInvalidDomain          = errors.New("Invalid domain format")
	ErrDomainTaken            = errors.New("Domain is already in use")
	ErrNoSubscription         = errors.New("No active subscription")
	ErrSubscriptionFetch      = errors.New("Failed to fetch subscription data")
	ErrAlreadyMigrated        = errors.New("User already migrated")
	ErrForbidden              = errors.New("Forbidden - Admin access required")
)

// ValidationError rejects malformed input before any state is read.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}
