package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Kihui/minix/internal/config"
	"github.com/Kihui/minix/internal/klog"
)

const (
	testServer ProcNr = 3
	testClientA ProcNr = 4
	testClientB ProcNr = 5
)

// newTestKernel bootstraps a kernel with a handful of ordinary processes
// attached at the same priority, call_mask wide open, for exercising the
// IPC/scheduler paths directly without going through cmd/kernelctl.
func newTestKernel(t *testing.T, nrOrdinary int) (*Kernel, []ProcNr) {
	t.Helper()

	cfg := config.Default()
	k, err := Bootstrap(cfg, klog.Nop())
	require.NoError(t, err)

	procs := make([]ProcNr, nrOrdinary)
	for i := 0; i < nrOrdinary; i++ {
		nr := ProcNr(cfg.NrTasks + i)
		require.NoError(t, k.AttachProc(nr, 8, ^uint32(0)))
		procs[i] = nr
	}

	// Tests exercise the IPC paths directly; grant every attached process
	// a wide-open send_mask so ordinary SEND/SENDREC calls aren't denied
	// by a privilege concern the test isn't about.
	for _, nr := range procs {
		mask := k.proc(nr).Priv.SendMask
		for i := 0; i < mask.Len(); i++ {
			mask.Set(i)
		}
	}

	return k, procs
}
