package kernel

import (
	"sync"

	"github.com/Kihui/minix/internal/config"
	"github.com/Kihui/minix/internal/klog"
)

// Event is an external observation of one completed SysCall or LockAlert,
// independent of any particular introspection client.
type Event struct {
	Kind   string
	Caller ProcNr
	Target ProcNr
	Result Errno
}

// Observer receives every Event as it completes, in completion order.
type Observer func(Event)

// Kernel owns the whole arena: the process table, the ready queues, the
// shared notification pool, and the single critical section every IPC and
// scheduling operation runs inside.
type Kernel struct {
	mu sync.Mutex

	cfg config.Config
	log *klog.Logger

	procs []Proc

	rdyHead []ProcNr
	rdyTail []ProcNr

	notifyBuf  []NotifyRecord
	notifyFree Bitmap

	// idToProc maps a compact priv id back to the process number that
	// owns it, for scanning NotifyPending bitmaps (spec.md §9's design
	// note on typed arena indices applies here too: ids are a second,
	// denser index space layered over ProcNr).
	idToProc []ProcNr
	nextID   int

	// hardware and system are the two pseudo-sources whose pending bits
	// live in IntPending/SigPending rather than an ordinary process's own
	// state (spec.md §5.2).
	hardware ProcNr
	system   ProcNr
	idle     ProcNr

	// billPtr names the last BILLABLE process pickProc elected, the way
	// the original's clock task consults bill_ptr to charge system time.
	billPtr ProcNr

	// observer, if set, is notified of every completed SysCall/LockAlert.
	// It must be installed before any traffic starts; nothing here
	// synchronizes a later change against a concurrent call.
	observer Observer

	ticks int64
}

// SetObserver installs obs as the kernel's event sink. Call it once, right
// after Bootstrap and before any SysCall/LockAlert traffic begins.
func (k *Kernel) SetObserver(obs Observer) {
	k.observer = obs
}

func (k *Kernel) emit(ev Event) {
	if k.observer != nil {
		k.observer(ev)
	}
}

// NewKernel allocates the arenas described by cfg but seeds nothing; call
// Bootstrap to get a kernel with its pseudo-tasks attached and idle ready.
func NewKernel(cfg config.Config, log *klog.Logger) *Kernel {
	if log == nil {
		log = klog.Nop()
	}

	total := cfg.NrTasks + cfg.NrProcs

	k := &Kernel{
		cfg:        cfg,
		log:        log,
		procs:      make([]Proc, total),
		rdyHead:    make([]ProcNr, cfg.NrSchedQueues),
		rdyTail:    make([]ProcNr, cfg.NrSchedQueues),
		notifyBuf:  make([]NotifyRecord, cfg.NrNotifyBufs),
		notifyFree: NewBitmap(cfg.NrNotifyBufs),
		idToProc:   make([]ProcNr, cfg.NrSysProcs),
		hardware:   NoProc,
		system:     NoProc,
		idle:       NoProc,
		billPtr:    NoProc,
	}

	for i := range k.procs {
		k.procs[i] = freshProc(ProcNr(i))
	}

	for q := range k.rdyHead {
		k.rdyHead[q] = NoProc
		k.rdyTail[q] = NoProc
	}

	for i := range k.idToProc {
		k.idToProc[i] = NoProc
	}

	return k
}

// Bootstrap builds a kernel and seeds its three fixed pseudo-tasks —
// IDLE, HARDWARE, SYSTEM — the way the original's initial process table
// rows do, then places IDLE on the lowest ready queue so pickProc always
// has somewhere to land (spec.md §9's Open Question on bootstrap order).
func Bootstrap(cfg config.Config, log *klog.Logger) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	k := NewKernel(cfg, log)

	idle := k.attachTask(0, "IDLE", cfg.IdleQ, PrivFlags(0))
	hw := k.attachTask(1, "HARDWARE", 0, KernelTask)
	sys := k.attachTask(2, "SYSTEM", 0, KernelTask)

	k.idle = idle
	k.hardware = hw
	k.system = sys

	k.ready(idle)

	k.log.Infof("kernel bootstrapped: idle=%d hardware=%d system=%d", idle, hw, sys)

	return k, nil
}

// attachTask seeds a fixed low-numbered kernel-class slot. It is not part
// of the general AttachProc lifecycle: pseudo-tasks never detach.
func (k *Kernel) attachTask(nr ProcNr, name string, priority int, flags PrivFlags) ProcNr {
	p := k.proc(nr)
	p.InUse = true
	p.Priority = priority
	p.MaxPriority = priority
	p.QuantumSize = k.cfg.QuantumFor(priority)
	p.FullQuantums = k.cfg.QuantumFor(priority)

	id := k.nextID
	k.nextID++

	p.Priv = Privilege{
		ID:            id,
		CallMask:      ^uint32(0),
		SendMask:      NewBitmap(k.cfg.NrSysProcs),
		Flags:         flags | KernelTask,
		NotifyPending: NewBitmap(k.cfg.NrSysProcs),
	}

	if flags&KernelTask != 0 {
		guard := stackGuardValue
		p.Priv.StackGuard = &guard
	}

	k.idToProc[id] = nr
	k.log.Debugf("attached task %s at proc %d (priv id %d)", name, nr, id)

	return nr
}

// AttachProc brings an ordinary process slot into service at the given
// priority, giving it a fresh priv id and an all-clear send_mask/
// notify_pending pair, then places it on its ready queue.
func (k *Kernel) AttachProc(nr ProcNr, priority int, callMask uint32) error {
	if !k.isValidProc(nr) {
		return EBadSrcDst
	}

	p := k.proc(nr)
	if p.InUse {
		return EBadSrcDst
	}

	if k.nextID >= k.cfg.NrSysProcs {
		return ENoSpc
	}

	id := k.nextID
	k.nextID++

	*p = freshProc(nr)
	p.InUse = true
	p.Priority = priority
	p.MaxPriority = priority
	p.QuantumSize = k.cfg.QuantumFor(priority)
	p.FullQuantums = k.cfg.QuantumFor(priority)
	p.Priv = Privilege{
		ID:            id,
		CallMask:      callMask,
		SendMask:      NewBitmap(k.cfg.NrSysProcs),
		Flags:         Billable | Preemptible,
		NotifyPending: NewBitmap(k.cfg.NrSysProcs),
	}

	k.idToProc[id] = nr
	k.LockReady(nr)

	return nil
}

// DetachProc removes a process from service: it is pulled off its ready
// queue (if present) and marked unused. Any sender still blocked on its
// CallerQ is left queued — spec.md names cleaning up abandoned callers a
// Non-goal.
func (k *Kernel) DetachProc(nr ProcNr) error {
	if !k.isValidProc(nr) || !k.proc(nr).InUse {
		return EBadSrcDst
	}

	p := k.proc(nr)
	if p.InReadyQ {
		k.LockUnready(nr)
	}

	p.InUse = false
	return nil
}

// NotifyAll is a supplemented convenience built from the original's
// pattern of a driver broadcasting one event to every process that
// registered interest (original_source/kernel/proc.c's callers of
// mini_notify in a loop over a subscriber list): it calls mini_notify once
// per destination and returns the first error encountered, if any,
// continuing to notify the rest regardless.
func (k *Kernel) NotifyAll(src ProcNr, dsts []ProcNr) error {
	var first Errno = OK

	k.withLock(lockAlert, "notify_all", func() {
		for _, dst := range dsts {
			msg := Message{Type: notifyFromType(src)}
			if res := k.miniNotify(src, dst, &msg); res != OK && first == OK {
				first = res
			}
		}
	})

	if first != OK {
		return first
	}

	return nil
}

func (k *Kernel) isValidProc(nr ProcNr) bool {
	return nr >= 0 && int(nr) < len(k.procs)
}

func (k *Kernel) proc(nr ProcNr) *Proc {
	return &k.procs[nr]
}

// uptime returns the kernel's tick counter, used as a notification's
// timestamp (spec.md §5.2).
func (k *Kernel) uptime() int64 {
	return k.ticks
}

// Tick advances the kernel's notion of time by one clock interrupt and
// charges it against whichever process pickProc currently names, mirroring
// the original's clock handler calling sched() for the running process.
func (k *Kernel) Tick() {
	k.withLock(lockSched, "tick", func() {
		k.ticks++
		if running := k.pickProc(); running != NoProc {
			k.sched(running)
		}
	})
}

// PickProc exposes pickProc for callers outside the package (a demo
// scheduler loop in cmd/kernelctl, or tests asserting on who would run
// next) without giving them direct ready-queue access.
func (k *Kernel) PickProc() ProcNr {
	var rp ProcNr
	k.withLock(lockReady, "pick", func() { rp = k.pickProc() })
	return rp
}

// ProcSnapshot is a read-only view of one process slot, for the
// introspection server: it never exposes the slot's internal list
// pointers, only the state an external observer cares about.
type ProcSnapshot struct {
	Nr          ProcNr
	InUse       bool
	RTS         RTSFlags
	Priority    int
	QuantumSize int
	Blocked     bool
}

// Snapshot returns a point-in-time copy of every in-use process slot.
func (k *Kernel) Snapshot() []ProcSnapshot {
	var out []ProcSnapshot

	k.withLock(lockReady, "snapshot", func() {
		for i := range k.procs {
			p := &k.procs[i]
			if !p.InUse {
				continue
			}
			out = append(out, ProcSnapshot{
				Nr:          p.Nr,
				InUse:       p.InUse,
				RTS:         p.RTS,
				Priority:    p.Priority,
				QuantumSize: p.QuantumSize,
				Blocked:     p.RTS != 0,
			})
		}
	})

	return out
}

// Uptime exposes the kernel's tick counter for the introspection server.
func (k *Kernel) Uptime() int64 {
	var t int64
	k.withLock(lockReady, "uptime", func() { t = k.uptime() })
	return t
}
