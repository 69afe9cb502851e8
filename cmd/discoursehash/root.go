package main

import (
	"database/sql"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/japaniel/discoursehash/pkg/config"
	"github.com/japaniel/discoursehash/pkg/db"
	"github.com/japaniel/discoursehash/pkg/errors"
	"github.com/japaniel/discoursehash/pkg/fingerprint"
	"github.com/japaniel/discoursehash/pkg/grid"
	"github.com/japaniel/discoursehash/pkg/logger"
)

// app holds what every subcommand needs once flags and config are resolved.
type app struct {
	configFile string
	verbose    int

	v   *viper.Viper
	cfg *config.Config
	log *zap.SugaredLogger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "discoursehash",
		Short: "Encode parsed discourses into content fingerprints",
		Long: `discoursehash - semantic fingerprints for parsed discourses.

Imports parsed discourses and the meaning grid into a SQLite record store,
encodes each discourse into entities, events and hash items, and prints its
199-character real and virtual fingerprints.

Examples:
  discoursehash init
  discoursehash grid import grid.json
  discoursehash import corpus.json.gz
  discoursehash encode --all --agree
  discoursehash hash --discourse 1 --virtual --agree`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Path to a TOML config file")
	flags.String("db", "", "Path to SQLite database (overrides database.path)")
	flags.Bool("json-logs", false, "Write logs as JSON")
	flags.CountVarP(&a.verbose, "verbose", "v", "Increase log verbosity")

	root.AddCommand(
		newInitCmd(a),
		newImportCmd(a),
		newGridCmd(a),
		newEncodeCmd(a),
		newHashCmd(a),
		newLayersCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	a.v = config.NewViper(a.configFile)
	flags := cmd.Root().PersistentFlags()
	if f := flags.Lookup("db"); f.Changed {
		if err := a.v.BindPFlag("database.path", f); err != nil {
			return errors.Wrap(err, "bind --db")
		}
	}
	if f := flags.Lookup("json-logs"); f.Changed {
		if err := a.v.BindPFlag("log.json", f); err != nil {
			return errors.Wrap(err, "bind --json-logs")
		}
	}

	cfg, err := config.Load(a.v, a.configFile != "")
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Log.Level
	if a.verbose > 0 {
		level = "debug"
	}
	log, err := logger.New(logger.Options{Level: level, JSON: cfg.Log.JSON})
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

// openDB opens and migrates the configured database.
func (a *app) openDB() (*sql.DB, error) {
	conn, err := db.Open(a.cfg.Database.Path, a.log)
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s", a.cfg.Database.Path)
	}
	return conn, nil
}

// service opens the database and returns a fingerprint service over the stored grid.
func (a *app) service() (*fingerprint.Service, *sql.DB, error) {
	conn, err := a.openDB()
	if err != nil {
		return nil, nil, err
	}
	g, err := grid.Load(conn)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return fingerprint.New(conn, g, a.log), conn, nil
}
