package main

import (
	"time"

	"github.com/jameskimau/inbox-rules/rules"
)

// API request and response models

// LoginRequest represents the request body for POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" example:"me@example.com"`
	Password string `json:"password" example:"secret"`
}

// LoginResponse carries the bearer token issued on login
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt" example:"2024-01-15T11:30:00Z"`
}

// CreateRuleRequest represents the request body for POST /api/rules
type CreateRuleRequest = rules.NewRule

// SimulateRequest represents the request body for POST /api/simulate
type SimulateRequest = rules.Email

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"Validation failed"`
	Details any    `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
