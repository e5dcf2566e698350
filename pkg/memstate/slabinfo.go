// pkg/memstate/slabinfo.go

package memstate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

// pageSizeKB is the system page size expressed in KB.
var pageSizeKB = int64(os.Getpagesize() / 1024)

// SlabCache is one real cache under /sys/kernel/slab with the names of
// the merged caches aliased onto it.
type SlabCache struct {
	Name    string
	Aliases []string
	Slabs   int64
	Order   int64
	SizeKB  int64
}

// CollectSlabInfo reads /sys/kernel/slab under basePath and returns the
// caches sorted by size, largest first. Symlinked entries are merged
// aliases and are folded into their target cache.
func CollectSlabInfo(basePath string) ([]SlabCache, error) {
	slabDir := filepath.Join(basePath, "sys", "kernel", "slab")
	entries, err := os.ReadDir(slabDir)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %v", slabDir, err)
	}

	aliases := make(map[string][]string)
	var caches []SlabCache

	for _, entry := range entries {
		path := filepath.Join(slabDir, entry.Name())

		if entry.Type()&os.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				continue
			}
			targetName := filepath.Base(target)
			aliases[targetName] = append(aliases[targetName], entry.Name())
			continue
		}
		if !entry.IsDir() {
			continue
		}

		slabs, err := slabAttr(path, "slabs")
		if err != nil {
			logging.Internal.Debug().Msgf("skipping slab cache %s: %v", entry.Name(), err)
			continue
		}
		order, err := slabAttr(path, "order")
		if err != nil {
			logging.Internal.Debug().Msgf("skipping slab cache %s: %v", entry.Name(), err)
			continue
		}

		caches = append(caches, SlabCache{
			Name:   entry.Name(),
			Slabs:  slabs,
			Order:  order,
			SizeKB: slabs * (pageSizeKB << order),
		})
	}

	for i := range caches {
		names := aliases[caches[i].Name]
		sort.Strings(names)
		caches[i].Aliases = names
	}

	sort.Slice(caches, func(i, j int) bool {
		if caches[i].SizeKB != caches[j].SizeKB {
			return caches[i].SizeKB > caches[j].SizeKB
		}
		return caches[i].Name < caches[j].Name
	})
	return caches, nil
}

// slabAttr reads a numeric attribute file of a slab cache. Files such as
// slabs can carry per-node suffixes ("84 N0=84"); only the first token
// counts.
func slabAttr(cacheDir, name string) (int64, error) {
	content, err := os.ReadFile(filepath.Join(cacheDir, name))
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(content))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty attribute %s", name)
	}
	return strconv.ParseInt(fields[0], 10, 64)
}

// TotalSlabKB sums the cache sizes.
func TotalSlabKB(caches []SlabCache) int64 {
	var total int64
	for _, c := range caches {
		total += c.SizeKB
	}
	return total
}

// SlabUsageExcessive reports whether total slab usage crosses 30% of the
// memory not reserved for hugepages.
func SlabUsageExcessive(slabKB, memTotalKB, hugetlbKB int64) bool {
	usable := memTotalKB - hugetlbKB
	if usable <= 0 {
		return false
	}
	return float64(slabKB) > 0.3*float64(usable)
}

// ShowSlab prints the top slab caches (all when top is 0) with a total
// and an excessive-usage warning where warranted.
func ShowSlab(w io.Writer, basePath string, top int) error {
	caches, err := CollectSlabInfo(basePath)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%-28s %12s %8s\n", "SLAB CACHE", "SIZE (KB)", "ORDER")
	shown := caches
	if top > 0 && top < len(caches) {
		shown = caches[:top]
	}
	for _, c := range shown {
		name := c.Name
		if len(c.Aliases) > 0 {
			name = fmt.Sprintf("%s (%s)", c.Name, strings.Join(c.Aliases, ","))
		}
		fmt.Fprintf(w, "%-28s %12d %8d\n", name, c.SizeKB, c.Order)
	}

	totalKB := TotalSlabKB(caches)
	fmt.Fprintf(w, "\nTotal slab usage: %.2f GB\n", float64(totalKB)/(1024*1024))

	meminfo, err := ParseMeminfo(basePath)
	if err != nil {
		return nil
	}
	if SlabUsageExcessive(totalKB, meminfo["MemTotal"], HugepagesKB(meminfo)) {
		logging.External.Warn().Msg(
			"slab usage exceeds 30% of usable memory, check for a leaking cache")
	}
	return nil
}

// ParseMeminfo reads /proc/meminfo under basePath into a map of kB values.
func ParseMeminfo(basePath string) (map[string]int64, error) {
	content, err := utils.ReadFileUnder(basePath, "/proc/meminfo")
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64)
	for _, line := range strings.Split(content, "\n") {
		key, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		value, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		result[strings.TrimSpace(key)] = value
	}
	return result, nil
}

// HugepagesKB returns the memory set aside for hugepages, preferring the
// Hugetlb accounting line and falling back to total pages times size.
func HugepagesKB(meminfo map[string]int64) int64 {
	if v, ok := meminfo["Hugetlb"]; ok {
		return v
	}
	return meminfo["HugePages_Total"] * meminfo["Hugepagesize"]
}

// ShowMeminfo prints the memory summary lines operators reach for first.
func ShowMeminfo(w io.Writer, basePath string) error {
	meminfo, err := ParseMeminfo(basePath)
	if err != nil {
		return err
	}

	keys := []string{
		"MemTotal", "MemFree", "MemAvailable", "Buffers", "Cached",
		"Slab", "SReclaimable", "SUnreclaim", "KernelStack", "PageTables",
		"CommitLimit", "Committed_AS", "Hugetlb",
	}
	for _, key := range keys {
		if value, ok := meminfo[key]; ok {
			fmt.Fprintf(w, "%-16s %12d kB\n", key+":", value)
		}
	}
	return nil
}
