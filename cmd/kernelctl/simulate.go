package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Kihui/minix/internal/config"
	"github.com/Kihui/minix/internal/introspect"
	"github.com/Kihui/minix/internal/kernel"
)

func newSimulateCmd() *cobra.Command {
	var overrides []string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scripted rendezvous scenario and print each step's result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(overrides)
		},
	}

	cmd.Flags().StringArrayVar(&overrides, "set", nil, "override a config field, key=value (repeatable)")

	return cmd
}

// runSimulate drives the three-process rendezvous scenario: a client
// SENDREC-calls a server, which is already blocked RECEIVEing from ANY, so
// the message transfers immediately; a notifier then alerts the server out
// of band. It covers the rendezvous, SENDREC and ALERT paths only, without
// a test harness around it.
func runSimulate(overrides []string) error {
	log := newLogger()
	cfg := config.Default()

	set, err := parseSetFlags(overrides)
	if err != nil {
		return err
	}
	cfg, err = cfg.WithOverrides(set)
	if err != nil {
		return err
	}

	k, err := kernel.Bootstrap(cfg, log)
	if err != nil {
		return err
	}

	trace := introspect.NewTrace(64)
	k.SetObserver(func(ev kernel.Event) {
		trace.Record(introspect.Event{
			Kind:   ev.Kind,
			Caller: int(ev.Caller),
			Target: int(ev.Target),
			Result: ev.Result.String(),
		})
	})

	const (
		server kernel.ProcNr = 3
		client kernel.ProcNr = 4
		notify kernel.ProcNr = 5
	)

	for _, nr := range []kernel.ProcNr{server, client, notify} {
		if err := k.AttachProc(nr, 8, ^uint32(0)); err != nil {
			return fmt.Errorf("attach proc %d: %w", nr, err)
		}
	}

	var reply kernel.Message
	recvDone := make(chan kernel.Errno, 1)

	go func() {
		var msg kernel.Message
		res := k.SysCall(server, kernel.MakeCallNr(kernel.FuncReceive, 0), kernel.Any, 0, &msg)
		recvDone <- res
	}()

	res := k.SysCall(client, kernel.MakeCallNr(kernel.FuncSendRec, 0), server, 0, &reply)
	fmt.Printf("client SENDREC -> server: %s\n", res)

	recvRes := <-recvDone
	fmt.Printf("server RECEIVE <- any: %s\n", recvRes)

	alertRes := k.SysCall(notify, kernel.MakeCallNr(kernel.FuncAlert, 0), server, 0, nil)
	fmt.Printf("notify ALERT -> server: %s\n", alertRes)

	fmt.Printf("next to run: proc %d\n", k.PickProc())

	fmt.Println("trace:")
	for _, ev := range trace.Recent() {
		fmt.Printf("  %s caller=%d target=%d result=%s\n", ev.Kind, ev.Caller, ev.Target, ev.Result)
	}

	return nil
}
