package connfactory

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/chbridge/rpc/common"
	"github.com/ValentinKolb/chbridge/rpc/transport"
	httptransport "github.com/ValentinKolb/chbridge/rpc/transport/http"
	"github.com/ValentinKolb/chbridge/rpc/transport/tcp"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
	"time"
)

var Logger = logger.GetLogger("connfactory")

// IConnFactory opens new driver gates
type IConnFactory interface {
	// Open opens a new gate for desc. It makes a single attempt, on failure no state is left behind.
	Open(ctx context.Context, desc common.Descriptor) (transport.IGate, error)
}

// Factory dispatches Open to the transport registered for the driver kind of the descriptor
type Factory struct {
	drivers      map[common.DriverKind]transport.IDriverTransport
	connectTimer gometrics.Timer
}

// NewFactory creates a factory with the http and binary (tcp) drivers
func NewFactory(config common.TransportConfig) *Factory {
	return NewFactoryWithDrivers(
		httptransport.NewHttpDriverTransport(config),
		tcp.NewTCPClientTransport(config),
	)
}

// NewFactoryWithDrivers creates a factory serving exactly the given drivers
func NewFactoryWithDrivers(drivers ...transport.IDriverTransport) *Factory {
	f := &Factory{
		drivers:      make(map[common.DriverKind]transport.IDriverTransport, len(drivers)),
		connectTimer: gometrics.NewTimer(),
	}
	for _, d := range drivers {
		f.drivers[d.Kind()] = d
	}
	return f
}

// --------------------------------------------------------------------------
// Interface Methods (docu see connfactory.IConnFactory)
// --------------------------------------------------------------------------

func (f *Factory) Open(ctx context.Context, desc common.Descriptor) (transport.IGate, error) {
	driver, ok := f.drivers[desc.Driver]
	if !desc.Driver.Valid() || !ok {
		return nil, common.NewError(common.ErrCConfiguration, fmt.Sprintf("invalid connection driver %q", desc.Driver))
	}

	start := time.Now()
	gate, err := driver.Connect(ctx, desc)
	f.connectTimer.UpdateSince(start)
	if err != nil {
		Logger.Warningf("could not connect to %s: %v", desc, err)
		return nil, common.WrapError(common.ErrCConnectFailure, err, "could not connect to %s", desc.Address())
	}

	Logger.Debugf("opened %s connection to %s", desc.Driver, desc)
	return gate, nil
}

// ConnectTimer returns the timer tracking the duration of all connect attempts
func (f *Factory) ConnectTimer() gometrics.Timer {
	return f.connectTimer
}
