package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matrizes_login_attempts_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	recoveryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matrizes_recovery_requests_total",
		Help: "Password recovery requests by outcome.",
	}, []string{"outcome"})

	recoveryRedemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matrizes_recovery_redemptions_total",
		Help: "Password recovery redemptions by outcome.",
	}, []string{"outcome"})
)
