package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Application limits
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.maxUploadBytes", 10*1024*1024)
	v.SetDefault("app.minJobDescriptionChars", 30)
	v.SetDefault("app.minExtractableChars", 100)
	v.SetDefault("app.maxResumeChars", 24000)
	v.SetDefault("app.maxJobDescriptionChars", 12000)
	v.SetDefault("app.maxResumeTokens", 6000)
	v.SetDefault("app.maxJobTokens", 3500)

	// Server
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 120*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.tlsCertFile", "")
	v.SetDefault("server.tlsKeyFile", "")
	v.SetDefault("server.rateLimit.enabled", true)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "resumeboost")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "resumeboost")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxConns", 25)
	v.SetDefault("database.minConns", 5)

	// Object storage
	v.SetDefault("storage.bucket", "resumes")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.signedUrlTtl", time.Hour)

	// AI
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.timeout", 90*time.Second)
	v.SetDefault("ai.maxRetries", 0)
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.maxOutputTokens", 2200)
	v.SetDefault("ai.useSystemPrompts", true)
	v.SetDefault("ai.circuitBreaker.enabled", true)
	v.SetDefault("ai.circuitBreaker.maxRequests", 3)
	v.SetDefault("ai.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("ai.circuitBreaker.timeout", 60*time.Second)
	v.SetDefault("ai.circuitBreaker.minRequests", 3)
	v.SetDefault("ai.circuitBreaker.failureThreshold", 0.6)

	// Stripe
	v.SetDefault("stripe.secretKey", "")
	v.SetDefault("stripe.webhookSecret", "")
	v.SetDefault("stripe.proPriceId", "")
	v.SetDefault("stripe.frontendUrl", "http://localhost:3000")

	// Quota
	v.SetDefault("quota.windowDays", 30)
	v.SetDefault("quota.plans", map[string]int{
		"free": 2,
		"pro":  -1,
	})

	// Cache
	v.SetDefault("cache.defaultTtl", 5*time.Minute)
	v.SetDefault("cache.cleanupInterval", 10*time.Minute)

	// Auth
	v.SetDefault("auth.jwtSecret", "")

	// Vault
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.geminiKey", "")
	v.SetDefault("vault.secrets.stripeKeys", "")
	v.SetDefault("vault.secrets.jwtSecret", "")

	// Observability
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "resumeboost")
	v.SetDefault("observability.sampleRate", 1.0)
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "")
}
