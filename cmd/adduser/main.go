package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"coop-ledger/internal/adapters/persistence/models"
	"coop-ledger/internal/adapters/persistence/repositories"
	"coop-ledger/internal/config"
	"coop-ledger/internal/core/domain"
	"coop-ledger/internal/core/services"

	"golang.org/x/term"
)

// storeOpener returns the store to write into and a cleanup func
type storeOpener func() (*repositories.Store, func(), error)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, openDatabaseStore); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer, open storeOpener) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("user", "", "Username")
	fullName := fs.String("name", "", "Full name (defaults to username)")
	role := fs.String("role", string(domain.RoleMember), "Role: member, teller or admin")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		fmt.Fprintln(stdout, "Usage: adduser -user <username> [-name <full name>] [-role member|teller|admin] [-password <password>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: user")
	}
	if *fullName == "" {
		*fullName = *username
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}

	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	user, err := services.BuildUser(&services.CreateUserInput{
		Username: *username,
		FullName: *fullName,
		Password: password,
		Role:     *role,
	})
	if err != nil {
		return err
	}

	store, cleanup, err := open()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer cleanup()

	ctx := context.Background()
	if err := store.Users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return fmt.Errorf("user %s already exists", user.Username)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s (%s) created successfully with ID %s\n", user.Username, user.Role, user.ID)
	return nil
}

// openDatabaseStore connects with the server's configuration. The memory
// store is refused since the user would vanish on exit.
func openDatabaseStore() (*repositories.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.StoreDriver == config.StoreMemory {
		return nil, nil, fmt.Errorf("STORE_DRIVER=memory has nothing to add users to")
	}

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := models.AutoMigrate(db); err != nil {
		config.CloseDatabase()
		return nil, nil, err
	}
	return repositories.NewStore(db), func() { config.CloseDatabase() }, nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
