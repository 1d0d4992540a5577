package main

import (
	"flag"
	"fmt"
	"os"

	"ms-storefront/internal/config"
	"ms-storefront/internal/database/migrations"
	"ms-storefront/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	log := logger.NewLogger("migrate")
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	dir := flag.String("dir", cfg.Database.MigrationsDir, "directory holding the *.sql migrations")
	seed := flag.Bool("seed", false, "also apply demo seed migrations")
	to := flag.Uint("to", 0, "migrate to this version (with the \"to\" command)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: migrate [flags] up|down|to|version\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cmd := "up"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}

	runner := migrations.NewRunner(cfg.Database.DSN, migrations.MigrateOptions{
		MigrationsDir: *dir,
		SeedData:      *seed,
	}, log)
	defer func() {
		if err := runner.Close(); err != nil {
			log.Warn("MIGRATE", err.Error())
		}
	}()

	var err error
	switch cmd {
	case "up":
		err = runner.RunMigrations()
	case "down":
		err = runner.MigrateDown()
	case "to":
		err = runner.MigrateTo(*to)
	case "version":
		var v uint
		var dirty bool
		v, dirty, err = runner.Version()
		if err == nil {
			log.Info("MIGRATE", fmt.Sprintf("version %d (dirty: %t)", v, dirty))
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	log.Info("MIGRATE", cmd+" complete")
}
