package kernel

// MessageDataWords sizes the generic payload carried by ordinary
// SEND/RECEIVE traffic. The kernel never interprets this payload; it is
// opaque cargo moved byte-for-byte between two Message values (spec.md §1:
// message copying is an external collaborator's concern wherever real
// separate address spaces are involved — here, since both ends live in one
// Go process, the "copy" is a direct struct assignment).
const MessageDataWords = 16

// Message is the fixed-size struct every SEND/RECEIVE/NOTIFY/ALERT moves.
// Its notification-specific fields (NotifyTimestamp, NotifyArg,
// NotifyFlags) are populated only when Type is a NOTIFY_FROM(source) type;
// ordinary traffic only uses Source, Type and Data.
type Message struct {
	Source ProcNr
	Type   int32

	NotifyTimestamp int64
	NotifyArg       int32
	NotifyFlags     int32

	Data [MessageDataWords]int32
}

// notifyFromType mirrors the original's NOTIFY_FROM(src) macro: a
// notification's m_type is derived entirely from its source.
func notifyFromType(src ProcNr) int32 {
	return int32(-1000 - int(src))
}

// synthesizeNotification is the single "build a notification payload"
// routine the spec.md §9 Open Question asks for: both mini_alert and the
// HARDWARE-sourced branch of mini_notify used to duplicate this
// int_pending/sig_pending capture logic independently; here every path
// that needs a synthesized notification calls this one function.
func (k *Kernel) synthesizeNotification(src, dst ProcNr) Message {
	dp := k.proc(dst)

	m := Message{
		Source:          src,
		Type:            notifyFromType(src),
		NotifyTimestamp: k.uptime(),
	}

	switch src {
	case k.hardware:
		m.NotifyArg = int32(dp.Priv.IntPending)
		dp.Priv.IntPending = 0
	case k.system:
		m.NotifyArg = int32(dp.Priv.SigPending)
		dp.Priv.SigPending = 0
	}

	return m
}
