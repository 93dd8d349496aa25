// cmd/provisionctl/main.go
//
// provisionctl manages service identities out of band: key generation,
// registration, deactivation, and listing.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agentgate/internal/trust"
	"agentgate/pkg/config"
	"agentgate/pkg/db"
	"agentgate/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cfg := config.Load()
	log := logger.New(cfg.Env)

	switch os.Args[1] {
	case "generate":
		fs := flag.NewFlagSet("generate", flag.ExitOnError)
		out := fs.String("out", "", "write the private key to this file instead of stdout")
		_ = fs.Parse(os.Args[2:])
		priv, pub, err := trust.GenerateKeyPair()
		if err != nil {
			log.Fatalw("keygen", "err", err)
		}
		if *out != "" {
			if err := os.WriteFile(*out, []byte(priv), 0o600); err != nil {
				log.Fatalw("write private key", "err", err)
			}
			fmt.Println(pub)
		} else {
			fmt.Println(priv)
			fmt.Println(pub)
		}

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		serviceID := fs.String("service-id", "", "service id (generated when empty)")
		name := fs.String("name", "", "display name")
		role := fs.String("role", "", "role to bind the identity to")
		keyFile := fs.String("pubkey", "", "path to the PEM public key")
		_ = fs.Parse(os.Args[2:])
		if *role == "" || *keyFile == "" {
			fs.Usage()
			os.Exit(2)
		}
		pem, err := os.ReadFile(*keyFile)
		if err != nil {
			log.Fatalw("read public key", "err", err)
		}
		id := *serviceID
		if id == "" {
			id = "svc-" + uuid.NewString()
		}
		store := mustStore(cfg, log)
		err = store.Register(context.Background(), trust.ServiceIdentity{
			ServiceID:    id,
			ServiceName:  *name,
			Role:         *role,
			PublicKeyPEM: string(pem),
			Active:       true,
		})
		if err != nil {
			log.Fatalw("register", "err", err)
		}
		fmt.Println(id)

	case "deactivate":
		fs := flag.NewFlagSet("deactivate", flag.ExitOnError)
		serviceID := fs.String("service-id", "", "service id to deactivate")
		_ = fs.Parse(os.Args[2:])
		if *serviceID == "" {
			fs.Usage()
			os.Exit(2)
		}
		store := mustStore(cfg, log)
		if err := store.Deactivate(context.Background(), *serviceID); err != nil {
			log.Fatalw("deactivate", "err", err)
		}
		fmt.Println("deactivated", *serviceID)

	case "list":
		store := mustStore(cfg, log)
		ids, err := store.List(context.Background())
		if err != nil {
			log.Fatalw("list", "err", err)
		}
		for _, id := range ids {
			fmt.Printf("%s\t%s\t%s\tactive=%v\t%s\n",
				id.ServiceID, id.ServiceName, id.Role, id.Active, id.CreatedAt.Format(time.RFC3339))
		}

	case "assertion":
		fs := flag.NewFlagSet("assertion", flag.ExitOnError)
		serviceID := fs.String("service-id", "", "service id to assert as")
		keyFile := fs.String("key", "", "path to the PEM private key")
		_ = fs.Parse(os.Args[2:])
		if *serviceID == "" || *keyFile == "" {
			fs.Usage()
			os.Exit(2)
		}
		pem, err := os.ReadFile(*keyFile)
		if err != nil {
			log.Fatalw("read private key", "err", err)
		}
		assertion, err := trust.MintAssertion(*serviceID, cfg.ServiceAudience, string(pem), time.Now())
		if err != nil {
			log.Fatalw("mint assertion", "err", err)
		}
		fmt.Println(assertion)

	default:
		usage()
		os.Exit(2)
	}
}

func mustStore(cfg config.Config, log *zap.SugaredLogger) trust.IdentityStore {
	pool := db.MustConnect(cfg, log)
	if pool == nil {
		log.Fatalw("DATABASE_URL required for this command")
	}
	return trust.NewPostgresIdentityStore(pool, log)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: provisionctl <command> [flags]

commands:
  generate    generate an RSA-2048 key pair
  register    register a service identity (-service-id -name -role -pubkey)
  deactivate  deactivate a service identity (-service-id)
  list        list service identities
  assertion   mint a client assertion for testing (-service-id -key)`)
}
