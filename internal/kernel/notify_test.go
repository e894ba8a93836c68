package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMiniAlertSetsBitWithoutTouchingNtfQ(t *testing.T) {
	k, procs := newTestKernel(t, 2)
	src, dst := procs[0], procs[1]

	require.Equal(t, OK, k.miniAlert(src, dst))

	dp := k.proc(dst)
	require.True(t, dp.Priv.NotifyPending.IsSet(k.idOf(src)))
	require.Equal(t, noNotify, dp.NtfQ, "mini_alert must never touch NtfQ")
}

func TestMiniAlertWakesWaitingReceiver(t *testing.T) {
	k, procs := newTestKernel(t, 2)
	src, dst := procs[0], procs[1]

	var buf Message
	require.Equal(t, OK, k.miniReceive(dst, Any, &buf, 0))

	require.Equal(t, OK, k.miniAlert(src, dst))

	require.Equal(t, notifyFromType(src), buf.Type)
	require.Equal(t, src, buf.Source)
	require.Zero(t, k.proc(dst).RTS)
	require.False(t, k.proc(dst).Priv.NotifyPending.IsSet(k.idOf(src)), "bit must clear once delivered")
}

func TestMiniNotifyQueuesAndReplacesInPlace(t *testing.T) {
	k, procs := newTestKernel(t, 2)
	src, dst := procs[0], procs[1]

	require.Equal(t, OK, k.miniNotify(src, dst, &Message{Type: 1, NotifyArg: 10}))
	firstHead := k.proc(dst).NtfQ
	require.NotEqual(t, noNotify, firstHead)

	require.Equal(t, OK, k.miniNotify(src, dst, &Message{Type: 1, NotifyArg: 20}))
	require.Equal(t, firstHead, k.proc(dst).NtfQ, "a second notify from the same source replaces in place")
	require.EqualValues(t, 20, k.notifyBuf[firstHead].Arg)

	// Only one record should exist for this (source, type) pair: dst's
	// NtfQ chain must still hold exactly one entry.
	count := 0
	for idx := k.proc(dst).NtfQ; idx != noNotify; idx = k.notifyBuf[idx].Next {
		count++
	}
	require.Equal(t, 1, count)
}

func TestMiniNotifyWakesWaitingReceiver(t *testing.T) {
	k, procs := newTestKernel(t, 2)
	src, dst := procs[0], procs[1]

	var buf Message
	require.Equal(t, OK, k.miniReceive(dst, Any, &buf, 0))

	require.Equal(t, OK, k.miniNotify(src, dst, &Message{Type: 55, NotifyArg: 7}))

	require.EqualValues(t, 55, buf.Type)
	require.EqualValues(t, 7, buf.NotifyArg)
	require.Equal(t, src, buf.Source)
	require.Zero(t, k.proc(dst).RTS)
	require.Equal(t, noNotify, k.proc(dst).NtfQ, "delivered record must be unlinked")
}

func TestPendingPickupPrefersBitmapOverNtfQ(t *testing.T) {
	k, procs := newTestKernel(t, 3)
	alertSrc, notifySrc, dst := procs[0], procs[1], procs[2]

	require.Equal(t, OK, k.miniNotify(notifySrc, dst, &Message{Type: 1}))
	require.Equal(t, OK, k.miniAlert(alertSrc, dst))

	var buf Message
	dp := k.proc(dst)
	dp.MessBuf = &buf

	delivered := k.pickupPending(dst, Any)
	require.True(t, delivered)
	require.Equal(t, alertSrc, buf.Source, "bitmap-sourced pending must be served before the NtfQ chain")

	// The notify-sourced record must still be there, untouched.
	require.NotEqual(t, noNotify, dp.NtfQ)
}
