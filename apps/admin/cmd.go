package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/vericlock/vericlock/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sqlx.DB
	engine  string
	usrRepo user.Repository
	out     io.Writer
}

func (cli *commandLine) output() io.Writer {
	if cli.out == nil {
		return os.Stdout
	}
	return cli.out
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.output(), format, args...)
}

// newFlagSet returns a subcommand FlagSet writing its usage to the CLI's output.
func (cli *commandLine) newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(cli.output())
	fs.Usage = func() {
		cli.printf("Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
	}
	return fs
}

func (cli *commandLine) printUsage() {
	cli.printf("Usage:\n")
	cli.printf("  adduser -u USERNAME -e EMAIL [-n NAME] [--owner] - create or update an admin account\n")
	cli.printf("  resetpassword -u USERNAME|EMAIL - reset user's password\n")
	cli.printf("  migrate COMMAND [ARGS] - run a goose command (up, up-by-one, up-to, down, down-to, redo, reset, status, version)\n")
	cli.printf("  expire - deactivate the accounts past their validity date\n")
}

func (cli *commandLine) promptPassword(fs *pflag.FlagSet) (string, error) {
	cli.printf("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func parseFlags(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := cli.newFlagSet("adduser")
	addUserUname := addUserCmd.StringP("username", "u", "", "The admin's username. The password will be prompted next.")
	addUserEmail := addUserCmd.StringP("email", "e", "", "The admin's email.")
	addUserName := addUserCmd.StringP("name", "n", "", "The admin's full name.")
	addUserOwner := addUserCmd.Bool("owner", false, "Grant every admin role.")

	resetPasswordCmd := cli.newFlagSet("resetpassword")
	resetPasswordUname := resetPasswordCmd.StringP("username", "u", "", "The user's username or email. The password will be prompted next.")

	switch args[1] {
	case "adduser":
		if err := parseFlags(addUserCmd, args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd, *addUserOwner)

	case "resetpassword":
		if err := parseFlags(resetPasswordCmd, args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "expire":
		n, err := cli.expire()
		if err != nil {
			return err
		}
		cli.printf("%d account(s) deactivated\n", n)
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}
