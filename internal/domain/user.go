package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Роли пользователей внутри компании
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

type User struct {
	ID           string `json:"id"`
	CompanyID    string `json:"company_id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // Никогда не отправляем на фронт
	Role         string `json:"role"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsApproverEligible — фоллбек-этап собирается из менеджеров и админов
func (u *User) IsApproverEligible() bool {
	return u.Role == RoleManager || u.Role == RoleAdmin
}

type CustomClaims struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Secure Token Issuing
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // Всегда "Bearer"
	ExpiresIn   int64  `json:"expires_in"`
}
