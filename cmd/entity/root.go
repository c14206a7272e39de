package entity

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ValentinKolb/dCheck/cmd/util"
	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/ValentinKolb/dCheck/lib/store"
	"github.com/ValentinKolb/dCheck/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcStore *client.RPCStore

	// EntityCommands represents the entity command group
	EntityCommands = &cobra.Command{
		Use:                "entity",
		Short:              "Inspect and create workspace entities",
		PersistentPreRunE:  setupEntityClient,
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error { return rpcStore.Close() },
	}

	getCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Show an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, found, err := rpcStore.GetEntity(args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("entity %s not found", args[0])
			}
			return PrintEntities(cmd.OutOrStdout(), []db.Entity{e})
		},
	}

	createCmd = &cobra.Command{
		Use:   "create [kind] [name]",
		Short: "Create a project, folder or file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := db.ParseKind(args[0])
			if err != nil {
				return err
			}
			parent, _ := cmd.Flags().GetString("parent")
			e, err := Create(rpcStore, kind, args[1], parent)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", e)
			return err
		},
	}

	lsCmd = &cobra.Command{
		Use:   "ls [parent-id]",
		Short: "List the children of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind db.Kind
			if k, _ := cmd.Flags().GetString("kind"); k != "" {
				var err error
				if kind, err = db.ParseKind(k); err != nil {
					return err
				}
			}
			children, err := rpcStore.ListChildren(args[0], kind)
			if err != nil {
				return err
			}
			return PrintEntities(cmd.OutOrStdout(), children)
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the entity command
	util.SetupRPCClientFlags(EntityCommands)

	// Add subcommands
	EntityCommands.AddCommand(getCmd)
	EntityCommands.AddCommand(createCmd)
	EntityCommands.AddCommand(lsCmd)

	createCmd.Flags().String("parent", "", util.WrapString("ID of the parent entity (required for folders and files)"))
	lsCmd.Flags().String("kind", "", util.WrapString("Only list children of this kind (project, folder, file, table)"))
}

// setupEntityClient connects to the server and logs in
func setupEntityClient(cmd *cobra.Command, _ []string) error {
	var err error
	rpcStore, err = util.ConnectStore(cmd)
	return err
}

// Create validates and creates a new entity. Tables are created by the
// checkout commands and can not be created here.
func Create(s store.IStore, kind db.Kind, name, parentID string) (db.Entity, error) {
	switch {
	case kind == db.KindTable:
		return db.Entity{}, fmt.Errorf("tables can not be created directly")
	case kind == db.KindProject && parentID != "":
		return db.Entity{}, fmt.Errorf("projects can not have a parent")
	case kind != db.KindProject && parentID == "":
		return db.Entity{}, fmt.Errorf("a %s needs a parent (--parent)", kind)
	}
	return s.CreateEntity(db.Entity{Name: name, Kind: kind, ParentID: parentID})
}

// PrintEntities writes entities as an aligned table
func PrintEntities(w io.Writer, entities []db.Entity) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tKIND\tNAME\tPARENT")
	for _, e := range entities {
		parent := e.ParentID
		if parent == "" {
			parent = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Kind, e.Name, parent)
	}
	return tw.Flush()
}
