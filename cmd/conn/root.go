package conn

import (
	"github.com/ValentinKolb/chbridge/cmd/util"
	"github.com/ValentinKolb/chbridge/lib/conncache"
	"github.com/ValentinKolb/chbridge/lib/connfactory"
	"github.com/ValentinKolb/chbridge/rpc/common"
	"github.com/spf13/cobra"
)

const (
	// ids of the single foreign server and user mapping built from the flags
	cliServer  conncache.ServerID = 1
	cliMapping conncache.Identity = 1
)

var (
	factory         *connfactory.Factory
	transportConfig common.TransportConfig
	serverOptions   []common.Option
	userOptions     []common.Option

	// ConnCommands represents the connection command group
	ConnCommands = &cobra.Command{
		Use:               "conn",
		Short:             "Open and use connections to a ClickHouse server",
		PersistentPreRunE: setupConn,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add connection flags to the command group
	util.SetupConnFlags(ConnCommands)

	// Add subcommands
	ConnCommands.AddCommand(resolveCmd)
	ConnCommands.AddCommand(pingCmd)
	ConnCommands.AddCommand(execCmd)
	ConnCommands.AddCommand(perfTestCmd)
}

// setupConn reads the options and creates the connection factory
func setupConn(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.InitLogging(); err != nil {
		return err
	}

	var err error
	if serverOptions, err = util.GetOptions("server-option"); err != nil {
		return err
	}
	if userOptions, err = util.GetOptions("user-option"); err != nil {
		return err
	}

	transportConfig = util.GetTransportConfig()
	factory = connfactory.NewFactory(transportConfig)
	return nil
}

// newCache creates a cache backed by a catalog holding the server and user mapping from the flags
func newCache(xacts conncache.TransactionNotifier) (*conncache.Cache, *conncache.MapCatalog) {
	catalog := conncache.NewMapCatalog()
	catalog.PutServer(conncache.ForeignServer{ID: cliServer, Name: "cli", Options: serverOptions})
	catalog.PutUserMapping(conncache.UserMapping{ID: cliMapping, ServerID: cliServer, Options: userOptions})

	config := conncache.DefaultConfig()
	config.TransactionNotifier = xacts
	config.MetadataNotifier = catalog

	return conncache.NewCache(catalog, factory, config), catalog
}
