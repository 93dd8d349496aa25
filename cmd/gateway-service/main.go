// cmd/gateway-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agentgate/internal/contracts"
	"agentgate/internal/data"
	"agentgate/internal/gateway"
	"agentgate/internal/health"
	"agentgate/internal/suspension"
	"agentgate/internal/trust"
	"agentgate/pkg/config"
	"agentgate/pkg/db"
	"agentgate/pkg/logger"
	"agentgate/pkg/middleware"
	"agentgate/pkg/roles"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var roleProvider roles.Provider
	var identities trust.IdentityStore
	if pool != nil {
		if err := roles.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("role schema", "err", err)
		}
		if err := roles.SeedDefaults(context.Background(), pool, log); err != nil {
			log.Warnw("role seed", "err", err)
		}
		if err := trust.EnsureIdentitySchema(context.Background(), pool); err != nil {
			log.Fatalw("identity schema", "err", err)
		}
		if err := data.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("resource schema", "err", err)
		}
		roleProvider = roles.NewPostgresProvider(pool, rdb, log)
		identities = trust.NewPostgresIdentityStore(pool, log)
	} else {
		var err error
		roleProvider, err = roles.NewMemoryProvider(log, cfg.RoleConfigPath)
		if err != nil {
			log.Fatalw("role config", "err", err)
		}
		identities = trust.NewMemoryIdentityStore()
	}

	tokens := trust.NewAgentTokenService(cfg.AgentToken, cfg.ServiceClockSkew, log)
	serviceAuth := trust.NewServiceAuthenticator(identities, cfg.ServiceAudience, cfg.ServiceMaxAge, cfg.ServiceClockSkew, log)
	tokenHandler := trust.NewTokenHandler(serviceAuth, tokens, roleProvider, cfg.AgentToken.Environment, cfg.PublicURL, log)

	verifyAgent := trust.VerifyAgent(tokens, roleProvider)
	verify := func(ctx context.Context, raw string) (middleware.AgentAuthContext, error) {
		claims, perm, err := verifyAgent(ctx, raw)
		if err != nil {
			return middleware.AgentAuthContext{}, err
		}
		return middleware.AgentAuthContext{
			Role:        claims.Role,
			ServiceID:   claims.ServiceID,
			Environment: claims.Environment,
			Endpoints:   perm.Endpoints,
			Resources:   perm.Resources,
			Operations:  perm.Operations,
		}, nil
	}

	state := suspension.NewState()
	interpreter := gateway.NewHTTPInterpreter(cfg.PlannerURL, cfg.PlannerPlanPath, log)
	writePolicy, err := gateway.NewWritePolicy(cfg.WriteConfidenceThreshold, cfg.WritePolicyRegoPath, log)
	if err != nil {
		log.Fatalw("write policy", "err", err)
	}
	var factory gateway.StoreFactory
	if pool != nil {
		factory = func(resource, table string) data.Store {
			return data.NewSQLStore(pool, table, log)
		}
	} else {
		// No database: back the resources with process-local tables so the
		// dev loop works end to end.
		backend := data.NewMemBackend()
		registry := contracts.All()
		factory = func(resource, table string) data.Store {
			pk := ""
			if c, ok := registry[resource]; ok {
				pk = c.PrimaryKeyField()
			}
			return backend.Store(table, pk)
		}
	}
	executor := gateway.NewExecutor(factory, data.Tables(), log)
	gatewayHandler := gateway.NewHandler(roleProvider, interpreter, writePolicy, executor, cfg.ExecTimeout, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing(cfg))
	r.Use(suspension.Gate(state))
	r.Use(middleware.AgentAuth(verify, log))

	r.Get("/healthz", health.Handler(pool, state, log))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	tokenHandler.Mount(r)
	gatewayHandler.Mount(r)
	suspension.NewHandler(state, log).Mount(r)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("gateway-service listening", "addr", cfg.HTTPAddr, "env", cfg.AgentToken.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("gateway-service stopped")
}
