package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the sync server and run the mirror",
	Long: `Connect to the sync server as the logged-in user and keep the local
mirror, reminders, and due-time triggers running until interrupted.

The persisted cache from a previous run is cleared on start: a fresh run
always waits for the server's snapshot rather than trusting old state.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Channel == nil {
			return fmt.Errorf("sync channel not initialized")
		}

		identity, err := IdentityStore.Load()
		if err != nil {
			return err
		}
		if !identity.Valid() {
			return fmt.Errorf("not logged in; run 'taskmirror login' first")
		}

		// A fresh run never trusts a previous run's snapshot.
		Cache.Clear()

		// One permission request per process; everything after this uses
		// the memoized answer.
		Gate.Request()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := Channel.Initialize(ctx, identity); err != nil {
			return err
		}
		fmt.Printf("Connected as %s. Mirroring tasks from %s.\n", identity.Email, Config.ServerAddr)

		if Config.DigestEnabled {
			if err := Daily.Start(Config.DigestTime); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
		}

		<-ctx.Done()
		fmt.Println("Shutting down.")
		if ShutdownFn != nil {
			ShutdownFn()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
