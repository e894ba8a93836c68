package kernel

import "fmt"

// Function is the low-bits half of a call number. SEND and RECEIVE are
// the two bits SENDREC composes from; NOTIFY, ALERT and ECHO are plain
// function codes.
type Function uint8

const (
	FuncSend Function = 1 << iota
	FuncReceive
	FuncNotify
	FuncAlert
	FuncEcho
)

// FuncSendRec is SEND fused with RECEIVE, exactly as spec.md §6 describes.
const FuncSendRec = FuncSend | FuncReceive

// hasMessage reports whether a call of this function carries a message
// buffer that needs the EFAULT address check (spec.md §4.1 step 3).
func (f Function) hasMessage() bool {
	switch f {
	case FuncSend, FuncReceive, FuncSendRec, FuncEcho:
		return true
	default:
		return false
	}
}

// isSend reports whether a call of this function has "send" semantics:
// it needs the send_mask/EDEADDST check (spec.md §4.1 step 4).
func (f Function) isSend() bool {
	return f == FuncSend || f == FuncSendRec
}

func (f Function) String() string {
	switch f {
	case FuncSend:
		return "SEND"
	case FuncReceive:
		return "RECEIVE"
	case FuncSendRec:
		return "SENDREC"
	case FuncNotify:
		return "NOTIFY"
	case FuncAlert:
		return "ALERT"
	case FuncEcho:
		return "ECHO"
	default:
		return "UNKNOWN"
	}
}

// Flags are the call_nr high bits.
type Flags uint16

const (
	NonBlocking Flags = 1 << (8 + iota)
	FreshAnswer
)

// CallNr packs a Function and Flags the way a real trap would: function
// in the low byte, flags above it.
type CallNr uint16

// MakeCallNr builds a call number from a function and flag set.
func MakeCallNr(fn Function, flags Flags) CallNr {
	return CallNr(fn) | CallNr(flags)
}

func (c CallNr) Function() Function { return Function(c & 0xFF) }
func (c CallNr) Flags() Flags       { return Flags(c &^ 0xFF) }

// SysCall is the single trap entry point (spec.md §4.1, §6). It is the
// kernel's non-reentrant boundary: the calling convention assumes this is
// reached from task context via whatever trap-entry assembly set up the
// call_nr/src_dst/m_ptr triple (that assembly is an external collaborator,
// spec.md §1, out of scope here) — SysCall itself takes the kernel's
// single lock for its duration, exactly as the lock_* gateways do for
// calls originating outside a trap (see lock.go).
func (k *Kernel) SysCall(caller ProcNr, callNr CallNr, srcDst ProcNr, vaddr Click, msg *Message) Errno {
	var res Errno

	k.withLock(lockSyscall, "syscall", func() {
		res = k.dispatch(caller, callNr, srcDst, vaddr, msg)
	})

	k.emit(Event{Kind: callNr.Function().String(), Caller: caller, Target: srcDst, Result: res})

	return res
}

// dispatch performs the validation order from spec.md §4.1 and then drives
// the IPC engine. Callers must already hold the kernel's critical section.
func (k *Kernel) dispatch(caller ProcNr, callNr CallNr, srcDst ProcNr, vaddr Click, msg *Message) Errno {
	cp := k.proc(caller)
	fn := callNr.Function()
	flags := callNr.Flags()

	// 1. Privilege: function must be in the caller's call mask. Calls to
	// kernel-class tasks are only allowed via SENDREC.
	if cp.Priv.CallMask&uint32(fn) == 0 {
		return ECallDenied
	}

	if k.isValidProc(srcDst) && k.proc(srcDst).Priv.Flags&KernelTask != 0 && fn != FuncSendRec {
		return ECallDenied
	}

	// 2. Endpoint: src_dst must be a real process, or the call is ECHO.
	// ANY is only meaningful on the receiving end (spec.md §6): a SEND,
	// SENDREC, NOTIFY or ALERT naming ANY is a bad endpoint, not a
	// wildcard, since none of them can address "whoever is listening".
	if !(k.isValidProc(srcDst) || (srcDst == Any && fn == FuncReceive) || fn == FuncEcho) {
		return EBadSrcDst
	}

	// 3. Buffer address, in clicks, against the caller's data+stack+gap.
	if fn.hasMessage() && !cp.Map.Contains(vaddr, MessageClicks) {
		return EFault
	}

	// 4. Destination alive & reachable, for calls with send semantics.
	if fn.isSend() {
		if !cp.Priv.SendMask.IsSet(k.idOf(srcDst)) {
			k.log.Warnf("send_mask denied %d sending to %d", caller, srcDst)
			return ECallDenied
		}

		if !k.isValidProc(srcDst) || !k.proc(srcDst).InUse {
			return EDeadDst
		}
	}

	switch fn {
	case FuncSend:
		return k.miniSend(caller, srcDst, msg, flags)
	case FuncSendRec:
		res := k.miniSend(caller, srcDst, msg, flags)
		if res != OK {
			return res
		}
		// SENDREC fusion: the receive half is restricted to the
		// destination just sent to, and suppresses pending-notification
		// delivery (spec.md §4.1).
		return k.miniReceive(caller, srcDst, msg, flags|FreshAnswer)
	case FuncReceive:
		return k.miniReceive(caller, srcDst, msg, flags)
	case FuncNotify:
		return k.miniNotify(caller, srcDst, msg)
	case FuncAlert:
		return k.miniAlert(caller, srcDst)
	case FuncEcho:
		return OK
	default:
		return EBadCall
	}
}

// idOf maps a process number to its compact priv id, used to address the
// send_mask/notify_pending bitmaps. It panics on an out-of-range process
// number, which would indicate a caller bug rather than a recoverable
// syscall error — this is never reachable from SysCall, which validates
// srcDst before calling it.
func (k *Kernel) idOf(nr ProcNr) int {
	if !k.isValidProc(nr) {
		panic(fmt.Sprintf("idOf: invalid process number %d", nr))
	}

	return k.proc(nr).Priv.ID
}
