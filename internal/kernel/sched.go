package kernel

import "fmt"

// ready inserts rp onto its priority's ready queue (spec.md §3/§4.3).
// A process whose priv flags carry RdyQHead goes to the front of its queue
// rather than the back, whatever its class; every other process is
// appended at the tail.
func (k *Kernel) ready(rp ProcNr) {
	p := k.proc(rp)
	if p.InReadyQ {
		panic(fmt.Sprintf("ready: process %d already on a ready queue", rp))
	}

	q := p.Priority
	p.NextReady = NoProc
	p.InReadyQ = true

	if k.rdyHead[q] == NoProc {
		k.rdyHead[q] = rp
		k.rdyTail[q] = rp
		return
	}

	if p.Priv.Flags&RdyQHead != 0 {
		p.NextReady = k.rdyHead[q]
		k.rdyHead[q] = rp
		return
	}

	k.proc(k.rdyTail[q]).NextReady = rp
	k.rdyTail[q] = rp
}

// unready removes rp from whatever ready queue it is on (spec.md §4.3). It
// panics if rp is a kernel task whose stack guard word has been
// overwritten — a corrupted kernel stack is not a recoverable condition
// (spec.md §8's stack-guard scenario). Blocking is always treated as an
// opportunity to un-demote: priority and the full-quantums budget reset to
// max_priority regardless of whether rp was actually found on a queue,
// exactly as the original does unconditionally after its unlink loop.
func (k *Kernel) unready(rp ProcNr) {
	p := k.proc(rp)

	if p.Priv.StackGuard != nil && *p.Priv.StackGuard != stackGuardValue {
		panic(fmt.Sprintf("unready: stack guard corrupted for kernel task %d", rp))
	}

	if p.InReadyQ {
		q := p.Priority

		if k.rdyHead[q] == rp {
			k.rdyHead[q] = p.NextReady
			if k.rdyHead[q] == NoProc {
				k.rdyTail[q] = NoProc
			}
		} else {
			prev := k.rdyHead[q]
			for prev != NoProc && k.proc(prev).NextReady != rp {
				prev = k.proc(prev).NextReady
			}
			if prev != NoProc {
				k.proc(prev).NextReady = p.NextReady
				if k.rdyTail[q] == rp {
					k.rdyTail[q] = prev
				}
			}
		}

		p.NextReady = NoProc
		p.InReadyQ = false
	}

	p.Priority = p.MaxPriority
	p.FullQuantums = k.cfg.QuantumFor(p.Priority)
}

// sched is called when rp has exhausted a time slice (spec.md §4.3).
// Non-preemptible (kernel) tasks are left untouched. Otherwise one
// full-quantum is charged; once the budget is exhausted the process is
// demoted one priority level — never into IdleQ, so IdleQ-1 is the lowest
// level demotion reaches, which limits the damage
// a runaway loop in a high-priority process can do — and its full-quantum
// budget refills for the (possibly new) level. Whether or not a demotion
// happened, if rp is still the head of its level's queue once this
// returns, it is rotated to the tail so a sibling at the same level gets a
// turn, and its per-tick sched_ticks budget refills.
func (k *Kernel) sched(rp ProcNr) {
	p := k.proc(rp)

	if p.Priv.Flags&Preemptible == 0 {
		return
	}

	p.FullQuantums--
	if p.FullQuantums <= 0 {
		if p.Priority+1 < k.cfg.IdleQ {
			newPriority := p.Priority + 1
			k.unready(rp)
			p.Priority = newPriority
			k.ready(rp)
		}
		p.FullQuantums = k.cfg.QuantumFor(p.Priority)
	}

	if k.rdyHead[p.Priority] == rp {
		k.rotateQueue(p.Priority)
	}

	p.SchedTicks = p.QuantumSize
	k.pickProc()
}

// rotateQueue moves the head of queue q to its tail. A no-op on an empty
// or single-element queue.
func (k *Kernel) rotateQueue(q int) {
	head := k.rdyHead[q]
	tail := k.rdyTail[q]
	if head == NoProc || head == tail {
		return
	}

	newHead := k.proc(head).NextReady
	k.proc(tail).NextReady = head
	k.rdyTail[q] = head
	k.rdyHead[q] = newHead
	k.proc(head).NextReady = NoProc
}

// pickProc scans the ready queues from highest priority (0) to IdleQ and
// returns the head of the first non-empty one (spec.md §4.3's strict
// priority scheduling rule). It returns NoProc only if even the idle
// queue is empty, which Bootstrap guarantees never happens. If the elected
// slot is BILLABLE, billPtr is updated so a clock task could charge it for
// system time.
func (k *Kernel) pickProc() ProcNr {
	for q := 0; q < len(k.rdyHead); q++ {
		if k.rdyHead[q] != NoProc {
			elected := k.rdyHead[q]
			if k.proc(elected).Priv.Flags&Billable != 0 {
				k.billPtr = elected
			}
			return elected
		}
	}

	return NoProc
}
