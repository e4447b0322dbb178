package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"
	"text/tabwriter"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/matehq/mate/internal/adapter/postgres"
	"github.com/matehq/mate/internal/adapter/vault"
	"github.com/matehq/mate/internal/config"
	"github.com/matehq/mate/internal/domain/tenant"
	"github.com/matehq/mate/internal/logger"
	"github.com/matehq/mate/internal/service"
)

// runAdmin dispatches admin subcommands against the control-plane database.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "create-tenant":
		return runAdminCreateTenant(args[1:])
	case "list-tenants":
		return runAdminListTenants(args[1:])
	case "suspend":
		return runAdminSuspend(args[1:])
	case "reactivate":
		return runAdminReactivate(args[1:])
	case "create-admin":
		return runAdminCreateAdmin(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: mate admin <command> [options]

Commands:
  create-tenant    Register a new tenant organization (does not provision)
  list-tenants     List all tenants with deployment status
  suspend          Suspend a tenant organization
  reactivate       Reactivate a suspended tenant
  create-admin     Create an admin user for a tenant
  help             Show this help message

Examples:
  mate admin create-tenant --name "General Hospital" --subdomain general --plan professional
  mate admin list-tenants
  mate admin suspend --subdomain general
  mate admin create-admin --subdomain general --user admin@general.example
`)
}

type adminDeps struct {
	tenants *service.TenantService
	secrets *vault.Store
}

func loadAdminDeps() (*adminDeps, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	secrets, err := vault.New(cfg.Vault)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("vault: %w", err)
	}

	store := postgres.NewStore(pool)
	deps := &adminDeps{
		tenants: service.NewTenantService(store, logger.New(cfg.Logging)),
		secrets: secrets,
	}
	cleanup := func() {
		pool.Close()
	}
	return deps, cleanup, nil
}

func runAdminCreateTenant(args []string) error {
	fs := flag.NewFlagSet("create-tenant", flag.ContinueOnError)
	name := fs.String("name", "", "organization display name (required)")
	subdomain := fs.String("subdomain", "", "tenant subdomain (required)")
	plan := fs.String("plan", string(tenant.PlanStarter), "billing plan: starter, professional, enterprise")
	region := fs.String("region", "", "deployment region (defaults from server config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *name == "" {
		return fmt.Errorf("--name is required")
	}
	if *subdomain == "" {
		return fmt.Errorf("--subdomain is required")
	}

	deps, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	t, err := deps.tenants.Create(ctx, tenant.CreateRequest{
		Name:      *name,
		Subdomain: *subdomain,
		Region:    *region,
		Plan:      tenant.Plan(*plan),
	})
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Tenant created: %s (id=%s, status=%s)\n", t.Subdomain, t.ID, t.DeploymentStatus)
	fmt.Fprintf(os.Stderr, "Provision it via POST /api/v1/tenants/%s/provision\n", t.ID)
	return nil
}

func runAdminListTenants(args []string) error {
	fs := flag.NewFlagSet("list-tenants", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	tenants, err := deps.tenants.List(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	if len(tenants) == 0 {
		fmt.Println("No tenants found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSUBDOMAIN\tNAME\tPLAN\tSTATUS\tACTIVE\tREGION")
	for i := range tenants {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			tenants[i].ID, tenants[i].Subdomain, tenants[i].Name,
			tenants[i].Plan, tenants[i].DeploymentStatus, tenants[i].Active, tenants[i].Region)
	}
	return w.Flush()
}

func runAdminSuspend(args []string) error {
	return runAdminStatusChange("suspend", args, func(ctx context.Context, deps *adminDeps, id string) error {
		_, err := deps.tenants.Suspend(ctx, id, "admin-cli")
		return err
	})
}

func runAdminReactivate(args []string) error {
	return runAdminStatusChange("reactivate", args, func(ctx context.Context, deps *adminDeps, id string) error {
		_, err := deps.tenants.Reactivate(ctx, id, "admin-cli")
		return err
	})
}

func runAdminStatusChange(cmd string, args []string, change func(context.Context, *adminDeps, string) error) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	subdomain := fs.String("subdomain", "", "tenant subdomain (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *subdomain == "" {
		return fmt.Errorf("--subdomain is required")
	}

	deps, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	t, err := deps.tenants.GetBySubdomain(ctx, *subdomain)
	if err != nil {
		return fmt.Errorf("find tenant: %w", err)
	}
	if err := change(ctx, deps, t.ID); err != nil {
		return fmt.Errorf("%s tenant: %w", cmd, err)
	}

	fmt.Fprintf(os.Stderr, "Tenant %s: %s applied\n", *subdomain, cmd)
	return nil
}

func runAdminCreateAdmin(args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	subdomain := fs.String("subdomain", "", "tenant subdomain (required)")
	userID := fs.String("user", "", "admin user identifier, usually an email (required)")
	password := fs.String("password", "", "password (prompted if not provided)") //nolint:gosec // CLI flag
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *subdomain == "" {
		return fmt.Errorf("--subdomain is required")
	}
	if *userID == "" {
		return fmt.Errorf("--user is required")
	}

	pass := *password
	if pass == "" {
		var err error
		pass, err = promptPassword("Password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		if pass != confirm {
			return fmt.Errorf("passwords do not match")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	deps, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	t, err := deps.tenants.GetBySubdomain(ctx, *subdomain)
	if err != nil {
		return fmt.Errorf("find tenant: %w", err)
	}

	m, err := deps.tenants.AddUser(ctx, t.ID, *userID, "admin", nil)
	if err != nil {
		return fmt.Errorf("add membership: %w", err)
	}

	// The password hash lives in the secret store next to the tenant's
	// other credentials, not in the control-plane database.
	ref, err := deps.secrets.Put(ctx, "mate/"+t.Subdomain+"/admin", map[string]string{
		"user_id":       *userID,
		"password_hash": string(hash),
	})
	if err != nil {
		return fmt.Errorf("store admin credentials: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Admin created: %s (membership=%s, secret=%s)\n", *userID, m.ID, ref)
	return nil
}

// promptPassword reads a password from the terminal without echoing.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)                         // newline after password input
	if err != nil {
		return "", err
	}
	return string(b), nil
}
