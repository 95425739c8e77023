package connfactory

import (
	"fmt"
	"github.com/ValentinKolb/chbridge/rpc/common"
	"strconv"
)

// Names of the options understood by Resolve. Options with other names are
// ignored, they belong to other consumers of the server and user mapping options.
const (
	OptDriver   = "driver"
	OptHost     = "host"
	OptPort     = "port"
	OptDatabase = "dbname"
	OptUser     = "user"
	OptPassword = "password"
)

// Resolve builds the connection descriptor from the options of a foreign server
// and a user mapping. Server options are applied first, so a setting present in
// both lists takes the value of the user mapping. Fields named by neither list keep
// their defaults (see common.DefaultDescriptor).
//
// The driver kind is not validated here, an unknown kind is rejected by Open.
func Resolve(serverOptions, userOptions []common.Option) (common.Descriptor, error) {
	desc := common.DefaultDescriptor()

	for _, options := range [][]common.Option{serverOptions, userOptions} {
		if err := applyOptions(&desc, options); err != nil {
			return common.Descriptor{}, err
		}
	}

	return desc, nil
}

// applyOptions applies a single option list in order, later entries win
func applyOptions(desc *common.Descriptor, options []common.Option) error {
	for _, opt := range options {
		switch opt.Name {
		case OptDriver:
			desc.Driver = common.DriverKind(opt.Value)
		case OptHost:
			desc.Host = opt.Value
		case OptPort:
			port, err := strconv.Atoi(opt.Value)
			if err != nil || port <= 0 || port > 65535 {
				return common.NewError(common.ErrCConfiguration, fmt.Sprintf("invalid port %q", opt.Value))
			}
			desc.Port = port
		case OptDatabase:
			desc.Database = opt.Value
		case OptUser:
			user := opt.Value
			desc.Username = &user
		case OptPassword:
			password := opt.Value
			desc.Password = &password
		}
	}
	return nil
}
