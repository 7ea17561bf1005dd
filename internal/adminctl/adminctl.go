// Package adminctl provisions admin accounts from the command line. An
// admin needs a password and a separate admin secret, and neither can be
// set through the public API.
package adminctl

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/eventpass/internal/logging"
	"github.com/dmitrijs2005/eventpass/internal/server/auth"
	"github.com/dmitrijs2005/eventpass/internal/server/config"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/eventpass/internal/server/services"
	"golang.org/x/crypto/bcrypt"
)

type Options struct {
	DatabaseDSN string
	Email       string
	FirstName   string
	LastName    string
	BcryptCost  int
}

// ParseFlags reads Options from args. The DSN defaults to the server
// default; email is prompted for when omitted.
func ParseFlags(args []string, output io.Writer) (*Options, error) {
	defaults := &config.Config{}
	defaults.LoadDefaults()

	fs := flag.NewFlagSet("adminctl", flag.ContinueOnError)
	fs.SetOutput(output)

	o := &Options{}
	fs.StringVar(&o.DatabaseDSN, "d", defaults.DatabaseDSN, "database DSN")
	fs.StringVar(&o.Email, "email", "", "admin email")
	fs.StringVar(&o.FirstName, "first", "", "first name (required for new accounts)")
	fs.StringVar(&o.LastName, "last", "", "last name (required for new accounts)")
	fs.IntVar(&o.BcryptCost, "cost", bcrypt.DefaultCost, "bcrypt cost")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return o, nil
}

// Run opens the store, applies migrations, collects the secrets, and
// creates or promotes the admin account.
func Run(ctx context.Context, o *Options, in io.Reader, out io.Writer, logger logging.Logger) error {
	reader := bufio.NewReader(in)
	if o.Email == "" {
		email, err := GetSimpleText(reader, "Admin email", out)
		if err != nil {
			return fmt.Errorf("read email: %w", err)
		}
		o.Email = email
	}

	password, err := GetSecret(out, "password")
	if err != nil {
		return err
	}
	secret, err := GetSecret(out, "admin secret")
	if err != nil {
		return err
	}

	repos, err := repomanager.Open(ctx, o.DatabaseDSN, 1, 0, logger)
	if err != nil {
		return err
	}
	defer repos.Close()

	if err := repos.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	svc := services.NewAuthService(repos, auth.NewTokenIssuer(""), auth.NewPasswordHasher(o.BcryptCost),
		nil, nil, &config.Config{}, logger)

	u, err := svc.ProvisionAdmin(ctx, services.AdminInput{
		Email:       o.Email,
		Password:    password,
		AdminSecret: secret,
		FirstName:   o.FirstName,
		LastName:    o.LastName,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Admin %s (%s) is ready\n", u.Email, u.ID)
	return nil
}
