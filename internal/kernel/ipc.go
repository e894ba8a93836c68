package kernel

// wouldDeadlock walks the chain of processes blocked SENDing, starting
// from dst, looking for caller: if dst is itself blocked trying to send to
// some other process that is in turn blocked sending to ... eventually
// caller, completing the call would deadlock the whole chain (spec.md
// §5.1's deadlock rule).
func (k *Kernel) wouldDeadlock(caller, dst ProcNr) bool {
	for nr := dst; nr != NoProc; {
		p := k.proc(nr)
		if p.RTS&Sending == 0 {
			return false
		}

		if p.SendTo == caller {
			return true
		}

		nr = p.SendTo
	}

	return false
}

// miniSend implements the SEND half of the rendezvous (spec.md §5.1): if
// dst is already blocked RECEIVEing from caller (or from ANY), the message
// is copied straight into dst's waiting buffer and dst is woken. Otherwise
// caller blocks, enqueued on dst's CallerQ.
func (k *Kernel) miniSend(caller, dst ProcNr, msg *Message, flags Flags) Errno {
	if k.wouldDeadlock(caller, dst) {
		return ELocked
	}

	dp := k.proc(dst)

	if dp.RTS&Receiving != 0 && k.alertDeliverable(dst, caller) {
		*dp.MessBuf = *msg
		dp.MessBuf.Source = caller

		dp.RTS &^= Receiving
		dp.MessBuf = nil
		dp.GetFrom = NoProc

		if dp.RTS == 0 {
			k.ready(dst)
		}

		return OK
	}

	if flags&NonBlocking != 0 {
		return ENotReady
	}

	cp := k.proc(caller)
	cp.RTS |= Sending
	cp.SendTo = dst
	cp.MessBuf = msg

	k.enqueueCaller(dst, caller)
	k.unready(caller)

	return OK
}

// enqueueCaller appends caller to dst's CallerQ, a singly linked FIFO of
// senders blocked waiting for dst to RECEIVE from them.
func (k *Kernel) enqueueCaller(dst, caller ProcNr) {
	dp := k.proc(dst)
	cp := k.proc(caller)
	cp.QLink = NoProc

	if dp.CallerQ == NoProc {
		dp.CallerQ = caller
		return
	}

	nr := dp.CallerQ
	for k.proc(nr).QLink != NoProc {
		nr = k.proc(nr).QLink
	}

	k.proc(nr).QLink = caller
}

// miniReceive implements the RECEIVE half (spec.md §5.1). Delivery
// priority, in order: a pending notification satisfying src (skipped
// entirely when flags carries FreshAnswer, the SENDREC restriction that a
// just-completed send's reply must come from the process just sent to,
// never from an unrelated pending notification); then a blocked sender on
// CallerQ matching src; otherwise caller itself blocks.
func (k *Kernel) miniReceive(caller, src ProcNr, msg *Message, flags Flags) Errno {
	cp := k.proc(caller)
	cp.MessBuf = msg

	if flags&FreshAnswer == 0 && k.pickupPending(caller, src) {
		cp.MessBuf = nil
		return OK
	}

	var prev ProcNr = NoProc
	nr := cp.CallerQ

	for nr != NoProc {
		sp := k.proc(nr)

		if src == Any || src == nr {
			*msg = *sp.MessBuf
			msg.Source = nr

			if prev == NoProc {
				cp.CallerQ = sp.QLink
			} else {
				k.proc(prev).QLink = sp.QLink
			}
			sp.QLink = NoProc

			sp.RTS &^= Sending
			sp.SendTo = NoProc
			sp.MessBuf = nil

			if sp.RTS == 0 {
				k.ready(nr)
			}

			cp.MessBuf = nil
			return OK
		}

		prev = nr
		nr = sp.QLink
	}

	if flags&NonBlocking != 0 {
		cp.MessBuf = nil
		return ENotReady
	}

	cp.RTS |= Receiving
	cp.GetFrom = src
	k.unready(caller)

	return OK
}
