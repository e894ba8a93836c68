package kernel

// notifyIdx is an arena index into Kernel.notifyBuf, standing in for the
// original's struct notification * pointers. noNotify is its NoProc.
type notifyIdx int

const noNotify notifyIdx = -1

// NotifyRecord is one queued mini_notify delivery. It carries the
// notification's type, flags and arg (unlike mini_alert, which only ever
// needs a single bit; a Message's Data words are not kept),
// which is why it lives in its own shared pool rather than inline in Proc.
type NotifyRecord struct {
	Source ProcNr
	Type   int32
	Flags  int32
	Arg    int32
	Next   notifyIdx
}

// miniAlert posts a bare pending-notification bit from caller to dst
// (spec.md §5.2). It never touches NtfQ: alert and notify are kept as two
// fully separate representations of "dst owes src a notification", so
// invariant 5 (the two representations must never duplicate the same
// pending event) holds by construction — see DESIGN.md's open-question
// entry for why this split, rather than a shared queue, was kept.
func (k *Kernel) miniAlert(caller, dst ProcNr) Errno {
	if !k.isValidProc(dst) {
		return EBadSrcDst
	}

	dp := k.proc(dst)
	dp.Priv.NotifyPending.Set(k.idOf(caller))

	if dp.RTS&Receiving != 0 && k.alertDeliverable(dst, caller) {
		k.deliverAlert(dst, caller)
	}

	return OK
}

// alertDeliverable reports whether dst, currently blocked in RECEIVE, would
// accept a notification appearing to come from src right now (spec.md
// §4.2 step 2: dst.getfrom ∈ {ANY, caller}). A receiver waiting on
// HARDWARE or SYSTEM specifically is already covered by dp.GetFrom == src
// when src is one of those pseudo-sources; it must not also accept
// delivery from an unrelated sender.
func (k *Kernel) alertDeliverable(dst, src ProcNr) bool {
	dp := k.proc(dst)
	return dp.GetFrom == Any || dp.GetFrom == src
}

// deliverAlert hands dst the synthesized notification immediately and
// wakes it, clearing the bit it was just served from.
func (k *Kernel) deliverAlert(dst, src ProcNr) {
	dp := k.proc(dst)
	dp.Priv.NotifyPending.Clear(k.idOf(src))

	msg := k.synthesizeNotification(src, dst)
	*dp.MessBuf = msg

	dp.RTS &^= Receiving
	dp.MessBuf = nil
	dp.GetFrom = NoProc

	if dp.RTS == 0 {
		k.ready(dst)
	}
}

// miniNotify queues a full-payload notification from caller to dst
// (spec.md §5.2). If dst already has a pending record from this same
// (source, type) pair, it is replaced in place rather than appended again —
// a second mini_notify carrying the same event type from the same source,
// arriving before the first is picked up, overwrites flags/arg rather than
// growing the queue (interrupt coalescing: only the latest state matters).
func (k *Kernel) miniNotify(caller, dst ProcNr, msg *Message) Errno {
	if !k.isValidProc(dst) {
		return EBadSrcDst
	}

	dp := k.proc(dst)

	// A HARDWARE-sourced notification carries dst's accumulated int_pending
	// as its arg, captured (and cleared) by synthesizeNotification.
	arg := msg.NotifyArg
	if caller == k.hardware {
		arg = k.synthesizeNotification(caller, dst).NotifyArg
	}

	last := noNotify
	for idx := dp.NtfQ; idx != noNotify; idx = k.notifyBuf[idx].Next {
		if k.notifyBuf[idx].Source == caller && k.notifyBuf[idx].Type == msg.Type {
			k.notifyBuf[idx].Flags = msg.NotifyFlags
			k.notifyBuf[idx].Arg = arg
			return k.tryDeliverNotify(dst, caller)
		}
		last = idx
	}

	idx, ok := k.notifyFree.AllocFirstClear()
	if !ok {
		return ENoSpc
	}

	k.notifyBuf[idx] = NotifyRecord{
		Source: caller,
		Type:   msg.Type,
		Flags:  msg.NotifyFlags,
		Arg:    arg,
		Next:   noNotify,
	}
	if last == noNotify {
		dp.NtfQ = notifyIdx(idx)
	} else {
		k.notifyBuf[last].Next = notifyIdx(idx)
	}

	return k.tryDeliverNotify(dst, caller)
}

// tryDeliverNotify wakes dst immediately if it is already blocked
// receiving from a source this notification satisfies.
func (k *Kernel) tryDeliverNotify(dst, src ProcNr) Errno {
	dp := k.proc(dst)

	if dp.RTS&Receiving == 0 || !k.alertDeliverable(dst, src) {
		return OK
	}

	k.popNotifyRecord(dst, src)
	return OK
}

// popNotifyRecord removes src's queued record from dst's NtfQ, copies its
// payload into dst's waiting buffer, and wakes dst. Caller must have
// already confirmed dst is blocked RECEIVEing from something src satisfies.
func (k *Kernel) popNotifyRecord(dst, src ProcNr) {
	dp := k.proc(dst)

	var prev notifyIdx = noNotify
	idx := dp.NtfQ

	for idx != noNotify && k.notifyBuf[idx].Source != src {
		prev = idx
		idx = k.notifyBuf[idx].Next
	}

	if idx == noNotify {
		return
	}

	rec := k.notifyBuf[idx]

	if prev == noNotify {
		dp.NtfQ = rec.Next
	} else {
		k.notifyBuf[prev].Next = rec.Next
	}

	k.notifyFree.Clear(int(idx))

	*dp.MessBuf = Message{
		Source:      rec.Source,
		Type:        rec.Type,
		NotifyArg:   rec.Arg,
		NotifyFlags: rec.Flags,
	}

	dp.RTS &^= Receiving
	dp.MessBuf = nil
	dp.GetFrom = NoProc

	if dp.RTS == 0 {
		k.ready(dst)
	}
}

// pickupPending scans dst's two pending-notification representations in a
// fixed order — the bitmap first, in ascending id order, then the NtfQ
// chain in FIFO order — and delivers the first match against src (which
// may be Any, a concrete source, or the HARDWARE/SYSTEM pseudo-sources).
// It reports whether something was delivered. The bitmap goes first only
// because mini_alert events are the cheaper, bit-only representation;
// invariant 5 guarantees the two scans never race for the same event.
func (k *Kernel) pickupPending(dst, src ProcNr) bool {
	dp := k.proc(dst)

	delivered := false
	dp.Priv.NotifyPending.Each(func(id int) bool {
		who := k.idToProc[id]
		if src != Any && src != who {
			return false
		}

		dp.Priv.NotifyPending.Clear(id)
		msg := k.synthesizeNotification(who, dst)
		*dp.MessBuf = msg
		delivered = true
		return true
	})

	if delivered {
		return true
	}

	for idx := dp.NtfQ; idx != noNotify; idx = k.notifyBuf[idx].Next {
		who := k.notifyBuf[idx].Source
		if src == Any || src == who {
			k.popRecordInto(dp, idx)
			return true
		}
	}

	return false
}

// popRecordInto removes the record at idx from dp's NtfQ and copies it into
// dp's already-assigned MessBuf (pickupPending's caller owns MessBuf's
// lifetime; unlike popNotifyRecord this does not touch RTS/ready).
func (k *Kernel) popRecordInto(dp *Proc, idx notifyIdx) {
	rec := k.notifyBuf[idx]

	var prev notifyIdx = noNotify
	cur := dp.NtfQ
	for cur != idx {
		prev = cur
		cur = k.notifyBuf[cur].Next
	}

	if prev == noNotify {
		dp.NtfQ = rec.Next
	} else {
		k.notifyBuf[prev].Next = rec.Next
	}

	k.notifyFree.Clear(int(idx))

	*dp.MessBuf = Message{
		Source:      rec.Source,
		Type:        rec.Type,
		NotifyArg:   rec.Arg,
		NotifyFlags: rec.Flags,
	}
}
