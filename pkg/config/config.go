// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// TokenProfile holds the environment-specific parameters used to mint and
// verify agent credentials. Each deployment environment gets its own signing
// secret, issuer and audience strings, and credential lifetime; production
// runs with the shortest lifetime.
type TokenProfile struct {
	Environment string // canonical environment label carried in the token
	Secret      []byte
	Issuer      string
	Audience    string
	TTL         time.Duration
}

type Config struct {
	Env       string // prod | qa | dev
	HTTPAddr  string
	PublicURL string // externally visible base URL, used in discovery

	// Postgres & Redis
	DatabaseURL string
	RedisURL    string

	// Agent credential profile for this process's environment
	AgentToken TokenProfile

	// Service assertion verification
	ServiceAudience  string
	ServiceMaxAge    time.Duration
	ServiceClockSkew time.Duration

	// External interpreter (untrusted NL -> plan producer)
	PlannerURL      string
	PlannerPlanPath string // jmespath into the planner response envelope

	// Write policy
	WriteConfidenceThreshold float64
	WritePolicyRegoPath      string

	// Role configuration
	RoleConfigPath string

	// Executor
	ExecTimeout time.Duration
}

func Load() Config {
	_ = godotenv.Load()
	environ := strings.ToLower(env("GATEWAY_ENV", "dev"))
	cfg := Config{
		Env:                      environ,
		HTTPAddr:                 env("GATEWAY_HTTP_ADDR", ":8080"),
		PublicURL:                env("GATEWAY_PUBLIC_URL", ""),
		DatabaseURL:              env("DATABASE_URL", ""),
		RedisURL:                 env("REDIS_URL", ""),
		AgentToken:               tokenProfile(environ),
		ServiceAudience:          env("SERVICE_AUDIENCE", "agentgate-auth"),
		ServiceMaxAge:            envSec("SERVICE_ASSERTION_MAX_AGE_SEC", 900),
		ServiceClockSkew:         envSec("SERVICE_CLOCK_SKEW_SEC", 60),
		PlannerURL:               env("PLANNER_URL", ""),
		PlannerPlanPath:          env("PLANNER_PLAN_PATH", "plan"),
		WriteConfidenceThreshold: envFloat("WRITE_CONFIDENCE_THRESHOLD", 0.80),
		WritePolicyRegoPath:      env("WRITE_POLICY_REGO_PATH", ""),
		RoleConfigPath:           env("ROLE_CONFIG_PATH", ""),
		ExecTimeout:              envSec("EXEC_TIMEOUT_SEC", 10),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set — using in-memory stores for dev")
	}
	return cfg
}

// tokenProfile builds the per-environment credential profile. Issuer,
// audience and the environment label differ per deployment, so a token
// minted for QA is structurally unusable against PROD even if the signing
// secret is reused across environments.
func tokenProfile(environ string) TokenProfile {
	secret := env("AGENT_JWT_SECRET", "")
	switch environ {
	case "prod":
		return TokenProfile{
			Environment: "PROD",
			Secret:      []byte(secret),
			Issuer:      env("AGENT_JWT_ISSUER", "agentgate-prod"),
			Audience:    env("AGENT_JWT_AUDIENCE", "agentgate-api-prod"),
			TTL:         envMin("AGENT_JWT_TTL_MIN", 60),
		}
	case "qa":
		return TokenProfile{
			Environment: "QA",
			Secret:      []byte(secret),
			Issuer:      env("AGENT_JWT_ISSUER", "agentgate-qa"),
			Audience:    env("AGENT_JWT_AUDIENCE", "agentgate-api-qa"),
			TTL:         envMin("AGENT_JWT_TTL_MIN", 1440),
		}
	default:
		return TokenProfile{
			Environment: "DEV",
			Secret:      []byte(secret),
			Issuer:      env("AGENT_JWT_ISSUER", "agentgate-dev"),
			Audience:    env("AGENT_JWT_AUDIENCE", "agentgate-api-dev"),
			TTL:         envMin("AGENT_JWT_TTL_MIN", 1440),
		}
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envSec(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return time.Duration(def) * time.Second
}

func envMin(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Minute
		}
	}
	return time.Duration(def) * time.Minute
}
