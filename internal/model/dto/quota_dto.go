package dto

// QuotaInfo is the read-only usage snapshot served to the web dashboard.
type QuotaInfo struct {
	Tier             string `json:"tier"`
	DailyMessages    int    `json:"daily_messages"`
	DailyLimit       int    `json:"daily_limit"`
	WeeklyProducts   int    `json:"weekly_products"`
	WeeklyLimit      int    `json:"weekly_limit"`
	MonthlyAICalls   int    `json:"monthly_ai_calls"`
	MonthlyLimit     int    `json:"monthly_limit"`
	PremiumExpiresAt string `json:"premium_expires_at,omitempty"`
}

// LinkRequest asks for a one-time login code to be sent over WhatsApp.
type LinkRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// VerifyRequest exchanges the code for a JWT.
type VerifyRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}
