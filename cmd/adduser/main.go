package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dukerupert/tally/internal/database"
	"github.com/dukerupert/tally/internal/model"
	"github.com/dukerupert/tally/internal/store"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

const defaultDBPath = "tally.db"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	name := fs.String("name", "", "Display name")
	email := fs.String("email", "", "Email address")
	roleFlag := fs.String("role", "user", "Role: user or manager")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	dbPath := fs.String("db", defaultDBPath, "Path to database file")
	setRole := fs.Bool("set-role", false, "Change the role of an existing user instead of creating one")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *setRole && *email == "" {
		fmt.Fprintln(stdout, "Usage: adduser -set-role -email <email> -role user|manager [-db <db_path>]")
		return fmt.Errorf("missing required flag: email")
	}
	if !*setRole && (*name == "" || *email == "") {
		fmt.Fprintln(stdout, "Usage: adduser -name <name> -email <email> [-role user|manager] [-password <password>] [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: name, email")
	}

	role, err := model.ParseRole(*roleFlag)
	if err != nil {
		return err
	}

	// TALLY_DB_PATH applies unless -db was given explicitly
	if path := os.Getenv("TALLY_DB_PATH"); path != "" && *dbPath == defaultDBPath {
		*dbPath = path
	}
	addr := strings.ToLower(strings.TrimSpace(*email))

	if *setRole {
		return changeRole(*dbPath, addr, role, stdout)
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if len(strings.TrimSpace(password)) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}

	db, err := database.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	users := store.NewUserStore(db)
	existing, err := users.GetByEmail(addr)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("user %s already exists", addr)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := users.Create(strings.TrimSpace(*name), addr, string(hash), role, nil)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s (%s) created with ID %d\n", user.Email, user.Role, user.ID)
	return nil
}

func changeRole(dbPath, addr string, role model.Role, stdout io.Writer) error {
	db, err := database.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	users := store.NewUserStore(db)
	user, err := users.GetByEmail(addr)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %s not found", addr)
	}
	if err := users.SetRole(user.ID, role); err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}

	fmt.Fprintf(stdout, "User %s is now %s\n", user.Email, role)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Pipes and tests
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
