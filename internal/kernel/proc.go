// Package kernel implements the synchronous IPC rendezvous engine and the
// multilevel priority scheduler that sit under it — the two halves spec.md
// calls the hard part of a microkernel's lowest layer. Everything here is
// grounded on original_source/kernel/proc.c; see DESIGN.md for the
// per-function mapping and for how the open questions in spec.md §9 were
// resolved.
package kernel

// ProcNr identifies a process-table slot. The table is a fixed arena: every
// "pointer" the original C source uses (p_caller_q, p_nextready, p_sendto,
// ...) is a ProcNr index into that arena here, never a language pointer.
type ProcNr int

// Sentinels. NoProc terminates every intrusive list (caller_q, ready
// queues, ntf_q) and marks "no destination/source". Any is the wildcard a
// RECEIVE may pass for src, or mini_send/mini_alert/mini_notify may see as
// a destination's getfrom.
const (
	NoProc ProcNr = -1
	Any    ProcNr = -2
)

// RTSFlags is the "runnable" bit set named in spec.md §3: a slot is
// runnable exactly when this is zero.
type RTSFlags uint8

const (
	Sending RTSFlags = 1 << iota
	Receiving
)

// PrivFlags are the privilege-class policy bits from spec.md §3's priv
// block.
type PrivFlags uint8

const (
	Billable PrivFlags = 1 << iota
	Preemptible
	RdyQHead
	// KernelTask marks a slot as one of the fixed kernel-class tasks
	// (IDLE, HARDWARE, SYSTEM, ...): sys_call's privilege check only
	// admits SENDREC against these (spec.md §4.1 step 1).
	KernelTask
)

// Click is a page-sized addressing unit, used only for the EFAULT buffer
// check (spec.md §4.1 step 3). It never participates in the actual message
// copy, which moves between caller-supplied *Message values directly —
// message copying between address spaces is an external collaborator this
// package treats as opaque (spec.md §1).
type Click uintptr

// MemRegion is one segment of a process's virtual address layout.
type MemRegion struct {
	VirBase Click
	Len     Click
}

// MemMap is the subset of a process's memory map the syscall dispatcher
// needs: the data segment's low bound and the stack segment's high bound,
// which together with the gap between them form the allowed message range.
type MemMap struct {
	Data  MemRegion
	Stack MemRegion
}

// Contains reports whether a sizeClicks-sized region starting at addr lies
// entirely within the data+stack+gap envelope.
func (m MemMap) Contains(addr Click, sizeClicks Click) bool {
	lo := m.Data.VirBase
	hi := m.Stack.VirBase + m.Stack.Len
	end := addr + sizeClicks

	if addr < lo || end < addr {
		return false
	}

	return end <= hi
}

// MessageClicks is the size, in clicks, the buffer-address check validates
// against. The message struct itself is far smaller than a click in this
// simulation; this constant exists so the EFAULT check has a concrete
// extent to validate, the way MESS_SIZE did in the original.
const MessageClicks Click = 1

// Privilege is the spec.md §3 priv block.
type Privilege struct {
	// ID is the compact index into the priv-id space: notify_pending and
	// send_mask are addressed by id, not by process number, so that the
	// bitmaps stay small even when process numbers are sparse.
	ID int

	CallMask uint32
	SendMask Bitmap
	Flags    PrivFlags

	NotifyPending Bitmap
	IntPending    uint32
	SigPending    uint32

	// StackGuard is non-nil only for kernel-class tasks; unready()
	// panics if the guarded word no longer holds stackGuardValue.
	StackGuard *uint32
}

const stackGuardValue uint32 = 0xDEADC0DE

// Proc is one process-table slot (spec.md §3).
type Proc struct {
	Nr    ProcNr
	InUse bool

	RTS     RTSFlags
	GetFrom ProcNr
	SendTo  ProcNr
	MessBuf *Message

	// CallerQ is the head of the singly linked list of slots blocked
	// sending to this one; QLink is this slot's own next-pointer for
	// membership in some other slot's CallerQ.
	CallerQ ProcNr
	QLink   ProcNr

	// NtfQ is the head of this slot's pending full-payload notification
	// records (mini_notify's delivery path; see notify.go).
	NtfQ notifyIdx

	Priority    int
	MaxPriority int

	FullQuantums int
	SchedTicks   int
	QuantumSize  int

	// NextReady is this slot's next-pointer while a member of a ready
	// queue; InReadyQ is the "member of at most one intrusive list"
	// witness spec.md §9 asks for.
	NextReady ProcNr
	InReadyQ  bool

	Map  MemMap
	Priv Privilege
}

func freshProc(nr ProcNr) Proc {
	return Proc{
		Nr:      nr,
		GetFrom: NoProc,
		SendTo:  NoProc,
		CallerQ: NoProc,
		QLink:   NoProc,
		NtfQ:    noNotify,
	}
}
