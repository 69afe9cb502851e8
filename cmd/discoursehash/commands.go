package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/japaniel/discoursehash/pkg/errors"
	"github.com/japaniel/discoursehash/pkg/fingerprint"
	"github.com/japaniel/discoursehash/pkg/grid"
	"github.com/japaniel/discoursehash/pkg/ingest"
	"github.com/japaniel/discoursehash/pkg/intake"
	"github.com/japaniel/discoursehash/pkg/logger"
)

const agreeUsage = "Agree to the usage policy (required)"

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.openDB()
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "Database initialized at %s\n", a.cfg.Database.Path)
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Import parsed discourse files (.json, .json.gz, .tgz)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.openDB()
			if err != nil {
				return err
			}
			defer conn.Close()

			g, err := grid.Load(conn)
			if err != nil {
				return err
			}

			ingester := ingest.NewIngester(conn, g, a.log)
			ingester.Workers = a.cfg.Ingest.Workers
			ingester.BatchSize = a.cfg.Ingest.BatchSize
			ingester.FlushInterval = a.cfg.Ingest.FlushInterval

			out := cmd.OutOrStdout()
			for _, path := range args {
				start := time.Now()
				docs, err := intake.LoadDocuments(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Loaded %d discourses from %s\n", len(docs), path)

				res, err := ingester.Ingest(cmd.Context(), docs)
				if err != nil {
					return errors.Wrapf(err, "import %s", path)
				}
				a.log.Infow("Imported file",
					logger.FieldPath, path,
					logger.FieldCount, len(res.DiscourseIDs),
					logger.FieldDurationMS, time.Since(start).Milliseconds())
				fmt.Fprintf(out, "Imported %d discourses (%d already present): %s\n",
					len(res.DiscourseIDs), res.Skipped, joinIDs(res.DiscourseIDs))
			}
			return nil
		},
	}
}

func newGridCmd(a *app) *cobra.Command {
	gridCmd := &cobra.Command{
		Use:   "grid",
		Short: "Manage the meaning grid",
	}
	gridCmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Import or update meaning grid positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := intake.LoadGrid(args[0])
			if err != nil {
				return err
			}
			conn, err := a.openDB()
			if err != nil {
				return err
			}
			defer conn.Close()

			tx, err := conn.BeginTx(cmd.Context(), nil)
			if err != nil {
				return errors.MarkCollaborator(err, "begin grid import")
			}
			n, err := intake.ImportGrid(tx, items)
			if err != nil {
				_ = tx.Rollback()
				return err
			}
			if err := tx.Commit(); err != nil {
				return errors.MarkCollaborator(err, "commit grid import")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d grid positions\n", n)
			return nil
		},
	})
	return gridCmd
}

func newEncodeCmd(a *app) *cobra.Command {
	var (
		discourseID int64
		all         bool
		agree       bool
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode one or all discourses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (discourseID != 0) {
				return errors.New("specify exactly one of --discourse or --all")
			}
			if !agree {
				return errors.ErrConsentDenied
			}
			svc, conn, err := a.service()
			if err != nil {
				return err
			}
			defer conn.Close()

			out := cmd.OutOrStdout()
			if all {
				if err := svc.EncodeAll(cmd.Context(), agree, a.cfg.Encode.Workers); err != nil {
					return err
				}
				fmt.Fprintln(out, "Encoded all discourses")
				return nil
			}

			report, err := svc.EncodeDiscourse(cmd.Context(), discourseID, agree)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Encoded discourse %d (run %s): %d events, %d intervals, %d entities, %d real and %d virtual items\n",
				report.DiscourseID, report.RunID, report.UnitTensors, report.Intervals, report.Entities,
				report.RealItems, report.VirtualItems)
			for _, d := range report.Skipped {
				fmt.Fprintf(out, "  skipped triplet %d: %s\n", d.TripletID, d.Reason)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&discourseID, "discourse", 0, "Discourse id to encode")
	cmd.Flags().BoolVar(&all, "all", false, "Encode every stored discourse")
	cmd.Flags().BoolVar(&agree, "agree", false, agreeUsage)
	return cmd
}

func newHashCmd(a *app) *cobra.Command {
	var (
		discourseID int64
		virtual     bool
		agree       bool
	)
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Print the fingerprint of an encoded discourse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !agree {
				return errors.ErrConsentDenied
			}
			svc, conn, err := a.service()
			if err != nil {
				return err
			}
			defer conn.Close()

			fp, err := svc.GetHash(cmd.Context(), discourseID, agree, virtual)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), fp)
			return nil
		},
	}
	cmd.Flags().Int64Var(&discourseID, "discourse", 0, "Discourse id")
	cmd.Flags().BoolVar(&virtual, "virtual", false, "Print the virtual fingerprint")
	cmd.Flags().BoolVar(&agree, "agree", false, agreeUsage)
	_ = cmd.MarkFlagRequired("discourse")
	return cmd
}

func newLayersCmd(a *app) *cobra.Command {
	var (
		discourseID int64
		virtual     bool
		agree       bool
	)
	cmd := &cobra.Command{
		Use:   "layers",
		Short: "Print the influence layers and top contributors of a fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !agree {
				return errors.ErrConsentDenied
			}
			svc, conn, err := a.service()
			if err != nil {
				return err
			}
			defer conn.Close()

			layers, err := svc.InfluenceLayers(cmd.Context(), discourseID, agree, virtual)
			if err != nil {
				return err
			}
			top, err := svc.TopContributors(cmd.Context(), discourseID, agree, virtual)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, layer := range layers {
				points := make([]string, len(layer))
				for j, p := range layer {
					points[j] = fmt.Sprintf("(%.3f, %.3f)", p.X, p.Y)
				}
				fmt.Fprintf(out, "Layer %d: %s\n", i+1, strings.Join(points, " "))
			}
			fmt.Fprintf(out, "Top contributors: %d\n", len(top))
			for _, item := range top {
				fmt.Fprintf(out, "  #%d excited radius %.3f\n", item.OrderBy, item.ExcitedRadius)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&discourseID, "discourse", 0, "Discourse id")
	cmd.Flags().BoolVar(&virtual, "virtual", false, "Use the virtual fingerprint")
	cmd.Flags().BoolVar(&agree, "agree", false, agreeUsage)
	_ = cmd.MarkFlagRequired("discourse")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// Version needs neither config nor a database.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), fingerprint.New(nil, nil, nil).Version())
		},
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
