package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSysCallEFaultOnOutOfRangeBuffer(t *testing.T) {
	k, procs := newTestKernel(t, 2)
	caller, dst := procs[0], procs[1]

	cp := k.proc(caller)
	cp.Map = MemMap{
		Data:  MemRegion{VirBase: 100, Len: 10},
		Stack: MemRegion{VirBase: 200, Len: 10},
	}

	var msg Message
	res := k.SysCall(caller, MakeCallNr(FuncSend, 0), dst, 5, &msg)
	require.Equal(t, EFault, res)
}

func TestSysCallEchoIgnoresDestination(t *testing.T) {
	k, procs := newTestKernel(t, 1)
	caller := procs[0]

	cp := k.proc(caller)
	cp.Map = MemMap{
		Data:  MemRegion{VirBase: 0, Len: 10},
		Stack: MemRegion{VirBase: 10, Len: 10},
	}

	var msg Message
	res := k.SysCall(caller, MakeCallNr(FuncEcho, 0), NoProc, 0, &msg)
	require.Equal(t, OK, res)
}

func TestSysCallECallDeniedWhenFunctionNotInMask(t *testing.T) {
	k, procs := newTestKernel(t, 2)
	caller, dst := procs[0], procs[1]

	k.proc(caller).Priv.CallMask = uint32(FuncReceive) // SEND not allowed

	var msg Message
	res := k.SysCall(caller, MakeCallNr(FuncSend, 0), dst, 0, &msg)
	require.Equal(t, ECallDenied, res)
}

func TestSysCallECallDeniedWhenSendMaskDenies(t *testing.T) {
	k, procs := newTestKernel(t, 2)
	caller, dst := procs[0], procs[1]

	cp := k.proc(caller)
	cp.Map = MemMap{
		Data:  MemRegion{VirBase: 0, Len: 10},
		Stack: MemRegion{VirBase: 10, Len: 10},
	}

	// Clear caller's send_mask entirely: nothing is reachable.
	cp.Priv.SendMask = NewBitmap(k.cfg.NrSysProcs)

	var msg Message
	res := k.SysCall(caller, MakeCallNr(FuncSend, 0), dst, 0, &msg)
	require.Equal(t, ECallDenied, res)
}

func TestSysCallSendRecRoundTrip(t *testing.T) {
	k, procs := newTestKernel(t, 2)
	client, server := procs[0], procs[1]

	validMap := MemMap{
		Data:  MemRegion{VirBase: 0, Len: 10},
		Stack: MemRegion{VirBase: 10, Len: 10},
	}
	k.proc(client).Map = validMap
	k.proc(server).Map = validMap

	var serverMsg Message
	res := k.SysCall(server, MakeCallNr(FuncReceive, 0), Any, 0, &serverMsg)
	require.Equal(t, OK, res)
	require.True(t, k.proc(server).RTS&Receiving != 0)

	var reply Message
	res = k.SysCall(client, MakeCallNr(FuncSendRec, 0), server, 0, &reply)
	require.Equal(t, OK, res)

	require.Equal(t, client, serverMsg.Source)
	require.True(t, k.proc(client).RTS&Receiving != 0, "client waits for server's reply")
	require.Equal(t, server, k.proc(client).GetFrom)
}

func TestSysCallEBadSrcDstWhenSendTargetsAny(t *testing.T) {
	k, procs := newTestKernel(t, 1)
	caller := procs[0]

	cp := k.proc(caller)
	cp.Map = MemMap{
		Data:  MemRegion{VirBase: 0, Len: 10},
		Stack: MemRegion{VirBase: 10, Len: 10},
	}

	var msg Message
	res := k.SysCall(caller, MakeCallNr(FuncSend, 0), Any, 0, &msg)
	require.Equal(t, EBadSrcDst, res, "ANY is only a valid endpoint for RECEIVE")
}

func TestSysCallEmitsObserverEvent(t *testing.T) {
	k, procs := newTestKernel(t, 1)
	caller := procs[0]

	cp := k.proc(caller)
	cp.Map = MemMap{
		Data:  MemRegion{VirBase: 0, Len: 10},
		Stack: MemRegion{VirBase: 10, Len: 10},
	}

	var got Event
	k.SetObserver(func(ev Event) { got = ev })

	var msg Message
	res := k.SysCall(caller, MakeCallNr(FuncEcho, 0), NoProc, 0, &msg)

	require.Equal(t, OK, res)
	require.Equal(t, "ECHO", got.Kind)
	require.Equal(t, caller, got.Caller)
	require.Equal(t, NoProc, got.Target)
	require.Equal(t, OK, got.Result)
}

func TestLockAlertEmitsObserverEvent(t *testing.T) {
	k, procs := newTestKernel(t, 2)
	src, dst := procs[0], procs[1]

	var got Event
	k.SetObserver(func(ev Event) { got = ev })

	res := k.LockAlert(src, dst)

	require.Equal(t, OK, res)
	require.Equal(t, "ALERT", got.Kind)
	require.Equal(t, src, got.Caller)
	require.Equal(t, dst, got.Target)
}

func TestFunctionHasMessageAndIsSend(t *testing.T) {
	require.True(t, FuncSend.hasMessage())
	require.True(t, FuncReceive.hasMessage())
	require.True(t, FuncSendRec.hasMessage())
	require.True(t, FuncEcho.hasMessage())
	require.False(t, FuncNotify.hasMessage())
	require.False(t, FuncAlert.hasMessage())

	require.True(t, FuncSend.isSend())
	require.True(t, FuncSendRec.isSend())
	require.False(t, FuncReceive.isSend())
	require.False(t, FuncNotify.isSend())
}
