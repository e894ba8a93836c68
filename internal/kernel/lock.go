package kernel

// lockTag names the handful of entry points that need the kernel's
// critical section established when reached from outside a syscall trap —
// a simulated clock tick, a hardware-interrupt simulator goroutine, or an
// external scheduler probe. The numbering matches the original's
// lock_notify/lock_send/lock_ready/lock_unready/lock_sched ids, kept here
// purely for log correlation, not for any ABI reason.
const (
	lockAlert   = 0
	lockSyscall = 1
	lockSend    = 2
	lockReady   = 3
	lockUnready = 4
	lockSched   = 5
)

// withLock is the single gateway every external entry point funnels
// through (spec.md §4.6/§9), standing in for the original's
// disable/restore-interrupts pair: since this simulation has only one
// critical section and nothing in the package calls back into withLock
// from inside an already-held section (dispatch/Tick reach miniSend/
// ready/sched directly, never through a Lock* gateway), a plain mutex
// held for fn's duration is the whole guarantee — no reentrancy bookkeeping
// is needed or safe to fake without making mu itself reentrant.
func (k *Kernel) withLock(tag int, name string, fn func()) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.log.Debugf("lock[%d] %s enter", tag, name)
	fn()
	k.log.Debugf("lock[%d] %s leave", tag, name)
}

// LockAlert is mini_alert's external gateway, for a hardware-interrupt
// simulator delivering a pending bit without going through SysCall.
func (k *Kernel) LockAlert(caller, dst ProcNr) Errno {
	var res Errno
	k.withLock(lockAlert, "alert", func() { res = k.miniAlert(caller, dst) })
	k.emit(Event{Kind: "ALERT", Caller: caller, Target: dst, Result: res})
	return res
}

// LockSend is mini_send's external gateway.
func (k *Kernel) LockSend(caller, dst ProcNr, msg *Message, flags Flags) Errno {
	var res Errno
	k.withLock(lockSend, "send", func() { res = k.miniSend(caller, dst, msg, flags) })
	return res
}

// LockReady is ready()'s external gateway, for code outside the syscall
// path that needs to make a process runnable directly (e.g. process
// creation in AttachProc).
func (k *Kernel) LockReady(rp ProcNr) {
	k.withLock(lockReady, "ready", func() { k.ready(rp) })
}

// LockUnready is unready()'s external gateway.
func (k *Kernel) LockUnready(rp ProcNr) {
	k.withLock(lockUnready, "unready", func() { k.unready(rp) })
}

// LockSched is sched()'s external gateway. The clock-tick driver in
// cmd/kernelctl calls Tick (kernel.go) instead, which takes the same lock
// under the same tag and calls sched for the process pickProc names.
func (k *Kernel) LockSched(rp ProcNr) {
	k.withLock(lockSched, "sched", func() { k.sched(rp) })
}
