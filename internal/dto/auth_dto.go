package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/nullpass/nullpass/internal/models"
	"github.com/nullpass/nullpass/internal/token"
)

type RegisterRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	DisplayName *string `json:"displayName,omitempty"`
}

type LoginRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	VerificationCode string `json:"verificationCode,omitempty"`
}

type VerifyTokenRequest struct {
	Token string `json:"token"`
}

type VerifyTokenResponse struct {
	Valid   bool          `json:"valid"`
	Payload token.Payload `json:"payload"`
}

type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"displayName"`
	Avatar      *string   `json:"avatar"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
	}
}

type AuthResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

// LoginResponse carries either a session token with the user's entitlements,
// or, when a second factor is still missing, a PendingToken that has no
// session behind it.
type LoginResponse struct {
	User         UserResponse                `json:"user"`
	Token        string                      `json:"token,omitempty"`
	Services     []models.ServiceEntitlement `json:"services,omitempty"`
	Requires2FA  bool                        `json:"requires2FA,omitempty"`
	PendingToken string                      `json:"pendingToken,omitempty"`
	Message      string                      `json:"message,omitempty"`
}

type MeResponse struct {
	User *models.User `json:"user"`
}

type TwoFactorRequest struct {
	Enable           bool   `json:"enable"`
	VerificationCode string `json:"verificationCode,omitempty"`
	Secret           string `json:"secret,omitempty"`
}

// TwoFactorResponse either confirms a state change or carries enrollment
// material for the authenticator app.
type TwoFactorResponse struct {
	Message          string `json:"message"`
	TwoFactorEnabled *bool  `json:"twoFactorEnabled,omitempty"`
	QRCode           string `json:"qrCode,omitempty"`
	Secret           string `json:"secret,omitempty"`
	ManualEntryKey   string `json:"manualEntryKey,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AccountRequest re-confirms credentials before disabling or deleting an account.
type AccountRequest struct {
	Password         string `json:"password"`
	VerificationCode string `json:"verificationCode,omitempty"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type SessionResponse struct {
	ID        uuid.UUID `json:"id"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type SessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
	Services  int    `json:"services"`
}
