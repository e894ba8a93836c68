package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMiniSendRendezvousWhenReceiverAlreadyWaiting(t *testing.T) {
	k, procs := newTestKernel(t, 2)
	server, client := procs[0], procs[1]

	var recvBuf Message
	res := k.miniReceive(server, Any, &recvBuf, 0)
	require.Equal(t, OK, res)
	require.True(t, k.proc(server).RTS&Receiving != 0)

	sendBuf := Message{Data: [MessageDataWords]int32{42}}
	res = k.miniSend(client, server, &sendBuf, 0)
	require.Equal(t, OK, res)

	require.Equal(t, client, recvBuf.Source)
	require.EqualValues(t, 42, recvBuf.Data[0])
	require.Zero(t, k.proc(server).RTS, "server should be woken")
}

func TestMiniSendBlocksWhenReceiverNotWaiting(t *testing.T) {
	k, procs := newTestKernel(t, 2)
	server, client := procs[0], procs[1]

	sendBuf := Message{}
	res := k.miniSend(client, server, &sendBuf, 0)
	require.Equal(t, OK, res)

	cp := k.proc(client)
	require.True(t, cp.RTS&Sending != 0)
	require.Equal(t, server, cp.SendTo)
	require.False(t, cp.InReadyQ)

	sp := k.proc(server)
	require.Equal(t, client, sp.CallerQ)
}

func TestMiniSendNonBlockingReturnsNotReady(t *testing.T) {
	k, procs := newTestKernel(t, 2)
	server, client := procs[0], procs[1]

	sendBuf := Message{}
	res := k.miniSend(client, server, &sendBuf, NonBlocking)
	require.Equal(t, ENotReady, res)
	require.True(t, k.proc(client).InReadyQ, "client must stay ready on a failed non-blocking send")
}

func TestMiniReceivePicksUpQueuedSender(t *testing.T) {
	k, procs := newTestKernel(t, 2)
	server, client := procs[0], procs[1]

	sendBuf := Message{Data: [MessageDataWords]int32{7}}
	require.Equal(t, OK, k.miniSend(client, server, &sendBuf, 0))

	var recvBuf Message
	res := k.miniReceive(server, Any, &recvBuf, 0)
	require.Equal(t, OK, res)
	require.Equal(t, client, recvBuf.Source)
	require.EqualValues(t, 7, recvBuf.Data[0])
	require.Zero(t, k.proc(client).RTS)
	require.True(t, k.proc(client).InReadyQ)
}

func TestWouldDeadlockDetectsSendChain(t *testing.T) {
	k, procs := newTestKernel(t, 3)
	a, b, c := procs[0], procs[1], procs[2]

	// a blocks sending to b, b blocks sending to c: c sending to a would
	// close the chain and must be refused.
	require.Equal(t, OK, k.miniSend(a, b, &Message{}, 0))
	require.Equal(t, OK, k.miniSend(b, c, &Message{}, 0))

	require.True(t, k.wouldDeadlock(c, a))
	require.Equal(t, ELocked, k.miniSend(c, a, &Message{}, 0))
}

func TestSendRecFusionSuppressesUnrelatedNotification(t *testing.T) {
	k, procs := newTestKernel(t, 3)
	server, client, other := procs[0], procs[1], procs[2]

	// other has a notification pending for client before client's SENDREC.
	require.Equal(t, OK, k.miniNotify(other, client, &Message{Type: 99}))

	// server is already blocked waiting for anyone.
	var serverBuf Message
	require.Equal(t, OK, k.miniReceive(server, Any, &serverBuf, 0))

	// client's SENDREC delivers to server directly (rendezvous), then its
	// receive half — restricted to server, with FreshAnswer set — must not
	// be satisfied by other's still-pending notification.
	require.Equal(t, OK, k.miniSend(client, server, &Message{}, 0))

	var reply Message
	res := k.miniReceive(client, server, &reply, FreshAnswer)
	require.Equal(t, OK, res)

	cp := k.proc(client)
	require.True(t, cp.RTS&Receiving != 0, "client must still be waiting on server, not satisfied by other's notification")
	require.Equal(t, server, cp.GetFrom)
	require.NotEqual(t, noNotify, cp.NtfQ, "other's notification must remain queued, not consumed")
}
