// Command hantas-cli dials a HANTAS torque-link device and, while the
// connection is up, issues a read-holding-registers request every two
// seconds, printing every response until interrupted.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/KyungtackKim/hantas-torque-link/hantaslink"
	"github.com/KyungtackKim/hantas-torque-link/internal/obs"
	"github.com/KyungtackKim/hantas-torque-link/orchestrator"
	"github.com/KyungtackKim/hantas-torque-link/wire"
)

const componentCLI obs.Component = "cli"

var (
	target   = flag.String("target", "rtu:///dev/ttyUSB0", "device URL, e.g. rtu:///dev/ttyUSB0, tcp://host:502, legacy://host:9000")
	connOpt  = flag.String("option", "9600", "baud rate (rtu) or port (tcp/legacy)")
	deviceID = flag.Int("id", 1, "MODBUS unit/slave id")
	address  = flag.Int("address", 0, "holding register start address")
	count    = flag.Int("count", 10, "number of holding registers to read")
	verbose  = flag.Bool("v", false, "enable debug logging")
)

func main() {
	flag.Parse()

	if *verbose {
		obs.SetLevel(logrus.DebugLevel)
	}

	option, err := strconv.Atoi(*connOpt)
	if err != nil {
		obs.Errorf(componentCLI, logrus.Fields{"option": *connOpt}, "invalid -option value")
		os.Exit(1)
	}

	client, err := hantaslink.Dial(*target,
		hantaslink.WithDeviceID(byte(*deviceID)),
		hantaslink.WithConnOption(option),
		hantaslink.WithCallbacks(orchestrator.Callbacks{
			ChangedConnect: onChangedConnect,
			Response:       onResponse,
			Error:          onError,
		}),
	)
	if err != nil {
		obs.Errorf(componentCLI, logrus.Fields{"target": *target, "error": err}, "dial failed")
		os.Exit(1)
	}
	defer client.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	readTicker := time.NewTicker(2 * time.Second)
	defer readTicker.Stop()

	for {
		select {
		case <-sigCh:
			obs.Infof(componentCLI, nil, "shutting down")
			return
		case <-readTicker.C:
			if !client.Connected() {
				continue
			}
			if !client.ReadHolding(wire.Address(*address), *count, true) {
				obs.Debugf(componentCLI, nil, "read still pending, skipped this tick")
			}
		}
	}
}

func onChangedConnect(connected bool) {
	obs.Infof(componentCLI, logrus.Fields{"connected": connected}, "connection state changed")
}

func onResponse(resp orchestrator.Response) {
	switch resp.Code {
	case wire.FuncReadHolding, wire.FuncReadInput:
		fmt.Printf("address=%s registers=%v\n", resp.Address, resp.Registers)
	case wire.FuncReadInfo:
		fmt.Printf("firmware=%d model=%v generation=%v\n", resp.Firmware, resp.Model, resp.Generation)
	case wire.FuncError:
		fmt.Printf("exception code=0x%02x\n", resp.ExceptionCode)
	default:
		fmt.Printf("response code=%v address=%s\n", resp.Code, resp.Address)
	}
}

func onError(ev wire.ErrorEvent) {
	obs.Warnf(componentCLI, logrus.Fields{"kind": ev.Kind.String()}, "transport error")
}
