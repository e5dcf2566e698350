// pkg/oscheck/plugins/processes.go

package plugins

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
	"github.com/ryan-mccabe/oled-tools/pkg/oscheck/engine"
	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

// cmdlineToName extracts a process name from its command line.
func cmdlineToName(cmdline string) string {
	fields := strings.Fields(cmdline)
	if len(fields) > 0 && fields[0] != "" {
		return filepath.Base(fields[0])
	}
	return cmdline
}

// collectLiveProcesses builds per-process attribute maps from the running
// system.
func collectLiveProcesses() []map[string]any {
	procs, err := process.Processes()
	if err != nil {
		logging.External.Error().Msgf("Unable to enumerate processes: %v", err)
		return nil
	}

	var out []map[string]any
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}

		data := map[string]any{
			"exists": true,
			"pid":    int64(p.Pid),
			"name":   name,
		}

		if cmdline, err := p.Cmdline(); err == nil {
			data["cmdline"] = cmdline
			data["cmdline_name"] = cmdlineToName(cmdline)
			// /proc/pid/status truncates names to 15 chars
			if cn, ok := data["cmdline_name"].(string); ok && len(name) == 15 && len(cn) > 15 {
				data["name"] = cn
			}
		}
		if exe, err := p.Exe(); err == nil {
			data["exe"] = exe
		}
		if cwd, err := p.Cwd(); err == nil {
			data["cwd"] = cwd
		}
		if statuses, err := p.Status(); err == nil && len(statuses) > 0 {
			data["state"] = strings.ToUpper(statuses[0][:1])
		}
		if uids, err := p.Uids(); err == nil && len(uids) >= 4 {
			data["uid"] = int64(uids[0])
			data["euid"] = int64(uids[1])
			data["suid"] = int64(uids[2])
			data["fsuid"] = int64(uids[3])
		}
		if gids, err := p.Gids(); err == nil && len(gids) >= 4 {
			data["gid"] = int64(gids[0])
			data["egid"] = int64(gids[1])
		}
		if username, err := p.Username(); err == nil {
			data["username"] = username
		}
		if mem, err := p.MemoryInfo(); err == nil && mem != nil {
			data["rss_kb"] = int64(mem.RSS)
			data["vmsize_kb"] = int64(mem.VMS)
		}
		if times, err := p.Times(); err == nil && times != nil {
			data["cpu_user_time_sec"] = times.User
			data["cpu_sys_time_sec"] = times.System
		}
		if nice, err := p.Nice(); err == nil {
			data["nice"] = int64(nice)
		}
		if threads, err := p.NumThreads(); err == nil {
			data["threads"] = int64(threads)
		}
		if fds, err := p.NumFDs(); err == nil {
			data["fd_count"] = int64(fds)
		}

		out = append(out, data)
	}
	return out
}

// collectSosreportProcesses parses the ps output a sosreport captures.
func collectSosreportProcesses(basePath string) []map[string]any {
	content, err := utils.ReadFileUnder(basePath, "sos_commands/process/ps_auxwww")
	if err != nil {
		logging.External.Error().Msgf("Unable to read sosreport process list: %v", err)
		return nil
	}

	var out []map[string]any
	for i, line := range strings.Split(content, "\n") {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 11 {
			continue
		}

		pid, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		cmdline := strings.Join(fields[10:], " ")

		data := map[string]any{
			"exists":       true,
			"username":     fields[0],
			"pid":          pid,
			"tty":          fields[6],
			"state":        fields[7][:1],
			"cmdline":      cmdline,
			"cmdline_name": cmdlineToName(cmdline),
			"name":         cmdlineToName(cmdline),
		}
		if vsz, err := strconv.ParseInt(fields[4], 10, 64); err == nil {
			data["vmsize_kb"] = vsz * 1024
		}
		if rss, err := strconv.ParseInt(fields[5], 10, 64); err == nil {
			data["rss_kb"] = rss * 1024
		}
		out = append(out, data)
	}
	return out
}

// ProcessesPlugin validates running processes. Rule keys are process name
// patterns. A pattern with no matching process fails unless the rule only
// asserts nonexistence.
type ProcessesPlugin struct{}

func (p *ProcessesPlugin) Name() string { return "processes" }

func (p *ProcessesPlugin) Run(rules map[string]any, basePath string) []Result {
	var all []map[string]any
	if basePath == "/" || basePath == "" {
		all = collectLiveProcesses()
	} else {
		all = collectSosreportProcesses(basePath)
	}

	var results []Result
	for pattern, rule := range rules {
		var matched []map[string]any
		for _, proc := range all {
			if name, ok := proc["name"].(string); ok && fnMatch(pattern, name) {
				matched = append(matched, proc)
			}
		}

		opts := &engine.Options{AllowMissingAttrs: true}
		if len(matched) == 0 {
			if engine.RuleImpliesNonexistence(rule) {
				dummy := map[string]any{"exists": false}
				context := "PROCESS " + pattern + " (not found)"
				results = append(results, evaluate(dummy, rule, pattern, context, opts))
			} else {
				results = append(results, failed(
					"PROCESS "+pattern,
					"no matching process found"))
			}
			continue
		}

		for _, proc := range matched {
			context := fmt.Sprintf("PROCESS %s pid=%v", pattern, proc["pid"])
			results = append(results, evaluate(proc, rule, pattern, context, opts))
		}
	}
	return results
}
