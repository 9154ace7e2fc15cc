// Package admin implements the stableftp-admin command tree: schema
// migrations, token issuing and read-only views of the progress store.
package admin

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/stableftp/internal/cryptox"
	"github.com/dmitrijs2005/stableftp/internal/server/store"
	"github.com/spf13/cobra"
)

// DefaultDSN matches the server's default progress store.
const DefaultDSN = "stable-ftp.sqlite"

// Opener connects to the progress store.
type Opener func(ctx context.Context, dsn string, migrate bool) (store.AdminStore, error)

// OpenSQL is the Opener backed by store.Open.
func OpenSQL(ctx context.Context, dsn string, migrate bool) (store.AdminStore, error) {
	return store.Open(ctx, dsn, migrate)
}

type commands struct {
	open Opener
	dsn  string
}

// NewRootCommand builds the command tree. Output goes to the command's
// configured writer.
func NewRootCommand(open Opener) *cobra.Command {
	c := &commands{open: open}

	rootCmd := &cobra.Command{
		Use:           "stableftp-admin",
		Short:         "Administer a stableftp progress store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&c.dsn, "dsn", DefaultDSN, "progress store DSN (SQLite path or postgres:// URL)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply schema migrations",
			Args:  cobra.NoArgs,
			RunE:  c.migrate,
		},
		c.tokenCmd(),
		c.transfersCmd(),
	)

	return rootCmd
}

func (c *commands) tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Bearer token commands",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Issue a new token; it is printed once and only its digest is stored",
		Args:  cobra.NoArgs,
		RunE:  c.tokenCreate,
	}
	create.Flags().String("notes", "", "free-form note stored with the token")

	cmd.AddCommand(
		create,
		&cobra.Command{
			Use:   "list",
			Short: "List issued tokens",
			Args:  cobra.NoArgs,
			RunE:  c.tokenList,
		},
	)
	return cmd
}

func (c *commands) transfersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfers",
		Short: "Transfer progress commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List transfer records",
		Args:  cobra.NoArgs,
		RunE:  c.transfersList,
	})
	return cmd
}

func (c *commands) withStore(cmd *cobra.Command, migrate bool, fn func(ctx context.Context, s store.AdminStore) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := c.open(ctx, c.dsn, migrate)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()
	return fn(ctx, s)
}

func (c *commands) migrate(cmd *cobra.Command, _ []string) error {
	return c.withStore(cmd, true, func(context.Context, store.AdminStore) error {
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	})
}

func (c *commands) tokenCreate(cmd *cobra.Command, _ []string) error {
	var notes *string
	if cmd.Flags().Changed("notes") {
		n, _ := cmd.Flags().GetString("notes")
		notes = &n
	}

	return c.withStore(cmd, false, func(ctx context.Context, s store.AdminStore) error {
		token, err := cryptox.GenerateToken()
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		cred, err := s.CreateCredential(ctx, token, notes)
		if err != nil {
			return fmt.Errorf("store token: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "token id %d created, it will not be shown again:\n", cred.ID)
		fmt.Fprintln(out, token)
		return nil
	})
}

func (c *commands) tokenList(cmd *cobra.Command, _ []string) error {
	return c.withStore(cmd, false, func(ctx context.Context, s store.AdminStore) error {
		creds, err := s.ListCredentials(ctx)
		if err != nil {
			return err
		}
		w := table(cmd.OutOrStdout())
		fmt.Fprintln(w, "ID\tCREATED\tNOTES")
		for _, cr := range creds {
			notes := ""
			if cr.Notes != nil {
				notes = *cr.Notes
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", cr.ID, cr.CreatedAt.UTC().Format(time.RFC3339), notes)
		}
		return w.Flush()
	})
}

func (c *commands) transfersList(cmd *cobra.Command, _ []string) error {
	return c.withStore(cmd, false, func(ctx context.Context, s store.AdminStore) error {
		recs, err := s.ListTransfers(ctx)
		if err != nil {
			return err
		}
		w := table(cmd.OutOrStdout())
		fmt.Fprintln(w, "ID\tFILE\tSIZE\tOWNER\tPROGRESS\tPACKET SIZE\tSTATE")
		for _, r := range recs {
			state := "partial"
			if r.Complete() {
				state = "complete"
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d/%d\t%d\t%s\n", r.ID, r.Filename, r.Size, r.OwnerID, r.CurrentPacket, r.TotalPackets, r.PacketSize, state)
		}
		return w.Flush()
	})
}

func table(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}
