// pkg/memstate/processes.go

package memstate

import (
	"fmt"
	"io"
	"sort"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
)

// ProcessRSS is one process and its resident set size.
type ProcessRSS struct {
	PID   int32
	Name  string
	RSSKB uint64
}

// TopRSS returns the n largest resident-set consumers, largest first.
func TopRSS(n int) ([]ProcessRSS, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("unable to list processes: %v", err)
	}

	var out []ProcessRSS
	for _, p := range procs {
		mem, err := p.MemoryInfo()
		if err != nil || mem == nil {
			continue
		}
		name, err := p.Name()
		if err != nil {
			name = "?"
		}
		out = append(out, ProcessRSS{PID: p.Pid, Name: name, RSSKB: mem.RSS / 1024})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RSSKB > out[j].RSSKB })
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out, nil
}

// ShowProcesses prints the top-n RSS consumers.
func ShowProcesses(w io.Writer, n int) error {
	top, err := TopRSS(n)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%8s %-24s %12s\n", "PID", "COMMAND", "RSS (KB)")
	for _, p := range top {
		fmt.Fprintf(w, "%8d %-24s %12d\n", p.PID, p.Name, p.RSSKB)
	}
	logging.Internal.Debug().Msgf("listed %d processes by RSS", len(top))
	return nil
}
