package main

import "github.com/vericlock/vericlock/storage/database"

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(cli.db, cli.engine, args[0], args[1:]...)
}
