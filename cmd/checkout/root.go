package checkout

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ValentinKolb/dCheck/cmd/util"
	"github.com/ValentinKolb/dCheck/lib/checkout"
	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/ValentinKolb/dCheck/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcStore    *client.RPCStore
	checkoutMgr checkout.ICheckoutManager

	// CheckoutCmd checks out a folder or file
	CheckoutCmd = &cobra.Command{
		Use:   "checkout [entity-id]",
		Short: "Check out a folder or file",
		Long: util.WrapString("Check out a folder or file. The lock is advisory: it is recorded in the " +
			"log table of the owning project and refused while any user holds an open lock on the entity."),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := checkoutMgr.Checkout(args[0])
			return Report(cmd.OutOrStdout(), "checkout", res, err)
		},
	}

	// CheckinCmd checks in a folder or file
	CheckinCmd = &cobra.Command{
		Use:   "checkin [entity-id]",
		Short: "Check in a folder or file",
		Long: util.WrapString("Check in a folder or file that was checked out by the current user. " +
			"An optional message is stored with the log entry."),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")
			force, _ := cmd.Flags().GetBool("force")
			res, err := checkoutMgr.Checkin(args[0], message, force)
			return Report(cmd.OutOrStdout(), "checkin", res, err)
		},
	}

	// LogCmd prints the log of an entity
	LogCmd = &cobra.Command{
		Use:   "log [entity-id]",
		Short: "Show the check-out log of a folder or file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			records, err := checkoutMgr.Log(args[0], all)
			if err != nil {
				return Report(cmd.OutOrStdout(), "log", checkout.Result{}, err)
			}
			return checkout.RenderLog(cmd.OutOrStdout(), records)
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	for _, c := range []*cobra.Command{CheckoutCmd, CheckinCmd, LogCmd} {
		// Add common RPC flags
		util.SetupRPCClientFlags(c)

		key := "conflict-retries"
		c.Flags().Int(key, checkout.DefaultOptions().ConflictRetries, util.WrapString("How often a check-in is retried after the log table was modified concurrently"))

		key = "stats"
		c.Flags().Bool(key, false, util.WrapString("Print the latency of every remote call to stderr"))

		c.PersistentPreRunE = setupCheckoutClient
		c.PersistentPostRunE = teardownCheckoutClient
	}

	// Add flags specific to checkin and log
	CheckinCmd.Flags().StringP("message", "m", "", util.WrapString(fmt.Sprintf("Message stored with the check-in (at most %d characters)", checkout.MaxMessageLength)))
	CheckinCmd.Flags().BoolP("force", "f", false, util.WrapString("Accepted for compatibility, a lock can only be checked in by its owner"))
	LogCmd.Flags().BoolP("all", "a", false, util.WrapString("Show the log entries of all entities of the project"))
}

// setupCheckoutClient connects to the server and creates the checkout manager
func setupCheckoutClient(cmd *cobra.Command, _ []string) error {
	var err error
	rpcStore, err = util.ConnectStore(cmd)
	if err != nil {
		return describe(err)
	}

	opts := checkout.DefaultOptions()
	opts.ConflictRetries = viper.GetInt("conflict-retries")
	checkoutMgr = checkout.NewCheckoutManager(checkout.NewSession(rpcStore.User(), rpcStore), opts)
	return nil
}

// teardownCheckoutClient prints the call statistics if requested and closes the connection
func teardownCheckoutClient(_ *cobra.Command, _ []string) error {
	if rpcStore == nil {
		return nil
	}
	if viper.GetBool("stats") {
		_ = rpcStore.WriteStats(os.Stderr)
	}
	return rpcStore.Close()
}

// --------------------------------------------------------------------------
// Output
// --------------------------------------------------------------------------

// Report prints the outcome of a checkout or checkin to w.
// Success and benign outcomes (already checked out, not checked out, not
// lockable) are printed and nil is returned; every other error is returned
// as a single line description.
func Report(w io.Writer, op string, res checkout.Result, err error) error {
	var notLockable *checkout.NotLockableError
	switch {
	case err == nil && op == "checkout":
		_, err = fmt.Fprintf(w, "%s successfully checked out.\n", res.Entity)
		return err
	case err == nil:
		_, err = fmt.Fprintf(w, "%s successfully checked in.\n", res.Entity)
		return err
	case errors.As(err, &notLockable):
		_, err = fmt.Fprintf(w, "Found %s. Only folders and files can be checked in/out.\n", notLockable.Entity)
		return err
	case errors.Is(err, checkout.ErrAlreadyLocked):
		_, err = fmt.Fprintf(w, "%s is already checked out by %s since %s.\n",
			res.Entity, res.Record.User, res.Record.CheckedOutAt.Format("2006-01-02 15:04:05 MST"))
		return err
	case errors.Is(err, checkout.ErrNoOpenLock):
		_, err = fmt.Fprintf(w, "%s is not currently checked out by you.\n", res.Entity)
		return err
	default:
		return describe(err)
	}
}

// describe turns an error into the one line shown to the user
func describe(err error) error {
	code := db.CodeOf(err)
	switch {
	case errors.Is(err, checkout.ErrAuth) || code == db.RetCUnauthorized:
		return fmt.Errorf("login failed, check user name and password (%w)", err)
	case errors.Is(err, checkout.ErrConflict):
		return fmt.Errorf("%w, please try again", err)
	case errors.Is(err, checkout.ErrNetwork) || code == db.RetCUnavailable:
		return fmt.Errorf("server not reachable, please try again (%w)", err)
	default:
		return err
	}
}
