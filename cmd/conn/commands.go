package conn

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/chbridge/cmd/util"
	"github.com/ValentinKolb/chbridge/lib/conncache"
	"github.com/ValentinKolb/chbridge/lib/connfactory"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"strings"
	"time"
)

var (
	resolveCmd = &cobra.Command{
		Use:   "resolve",
		Short: "Prints the connection descriptor built from the options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := connfactory.Resolve(serverOptions, userOptions)
			if err != nil {
				return err
			}
			fmt.Println(desc)
			fmt.Println(transportConfig.String())
			return nil
		},
	}
	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Opens a connection and closes it again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := connfactory.Resolve(serverOptions, userOptions)
			if err != nil {
				return err
			}

			start := time.Now()
			gate, err := factory.Open(context.Background(), desc)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)
			if err := gate.Disconnect(); err != nil {
				util.Logger.Warningf("error while disconnecting: %v", err)
			}

			fmt.Printf("connected to %s in %s\n", desc, elapsed)
			return nil
		},
	}
	execCmd = &cobra.Command{
		Use:   "exec [statement...]",
		Short: "Executes statements on one cached connection",
		Long: `Executes the statements one after another on the same cached connection.
With --xact all statements run in one local transaction, which is committed if all
statements succeed and aborted otherwise.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runExec,
	}
)

func init() {
	key := "xact"
	execCmd.Flags().Bool(key, false, util.WrapString("Run all statements in one transaction"))
	key = "intent"
	execCmd.Flags().String(key, "write", util.WrapString("Connection intent (read, write)"))
	key = "metrics"
	execCmd.Flags().Bool(key, false, util.WrapString("Print the connection metrics after execution"))
}

func runExec(cmd *cobra.Command, statements []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	var intent conncache.Intent
	switch strings.ToLower(viper.GetString("intent")) {
	case "read":
		intent = conncache.IntentRead
	case "write":
		intent = conncache.IntentWrite
	default:
		return fmt.Errorf("invalid intent %s", viper.GetString("intent"))
	}

	ctx := context.Background()
	xacts := conncache.NewLocalTransactions()
	cache, _ := newCache(xacts)
	defer cache.Close()

	if viper.GetBool("xact") {
		if err := xacts.Begin(ctx); err != nil {
			return err
		}
	}

	for _, statement := range statements {
		gate, err := cache.Acquire(ctx, cliMapping, intent, false)
		if err == nil {
			var resp []byte
			if resp, err = gate.Execute(ctx, statement); err == nil {
				fmt.Print(string(resp))
				if len(resp) > 0 && resp[len(resp)-1] != '\n' {
					fmt.Println()
				}
			}
		}
		if err != nil {
			if abortErr := xacts.Abort(ctx); abortErr != nil {
				util.Logger.Warningf("abort failed: %v", abortErr)
			}
			return err
		}
	}

	if viper.GetBool("xact") {
		if err := xacts.Commit(ctx); err != nil {
			return err
		}
	}

	if viper.GetBool("metrics") {
		fmt.Println()
		for _, state := range cache.Entries() {
			fmt.Println(state)
		}
		cache.WriteMetrics(os.Stdout)
		timer := factory.ConnectTimer()
		fmt.Printf("connect: count=%d mean=%s max=%s\n", timer.Count(), time.Duration(timer.Mean()), time.Duration(timer.Max()))
	}
	return nil
}
