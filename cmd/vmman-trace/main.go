// Command vmman-trace is an operational harness for internal/vmman: it
// drives a ManagedRange either from a recorded JSON trace file or from a
// synthetic internal/workload generator, optionally fanning operations
// out across concurrent callers, and reports a final summary. It is
// ordinary ops tooling around the library, the same role this repo's
// orizon-fuzz and orizon-smoke-test play for the compiler — it is not
// part of the manager's public interface.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/orizon-lang/vmman/internal/vmman"
	"github.com/orizon-lang/vmman/internal/workload"
)

func main() {
	var (
		pages       int
		tracePath   string
		n           int
		parallel    int
		useMmap     bool
		sanity      bool
		seed        int64
		metricsAddr string
	)

	flag.IntVar(&pages, "pages", 4096, "page count of the managed range's backing slab")
	flag.StringVar(&tracePath, "trace", "", "replay a JSON-lines trace file instead of generating one")
	flag.IntVar(&n, "n", 10000, "number of synthetic operations to generate (ignored with -trace)")
	flag.IntVar(&parallel, "p", 1, "number of concurrent callers driving the manager")
	flag.BoolVar(&useMmap, "mmap", false, "back the managed range with a real anonymous mmap region instead of a Go slice")
	flag.BoolVar(&sanity, "sanity", false, "call IsSane after every operation and stop at the first violation")
	flag.Int64Var(&seed, "seed", 1, "random seed for the synthetic workload generator")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics for the managed range on this address")
	flag.Parse()

	if err := run(pages, tracePath, n, parallel, useMmap, sanity, seed, metricsAddr); err != nil {
		log.Fatal(err)
	}
}

func run(pages int, tracePath string, n, parallel int, useMmap, sanity bool, seed int64, metricsAddr string) error {
	length := vmman.Size(pages) * vmman.DefaultPageSize

	backing, closeBacking, err := newBacking(int(length), useMmap)
	if err != nil {
		return fmt.Errorf("allocate backing slab: %w", err)
	}
	defer closeBacking()

	m, err := vmman.NewManagedRange(0, length, vmman.WithBacking(backing), vmman.WithScrub(true))
	if err != nil {
		return fmt.Errorf("construct managed range: %w", err)
	}

	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(vmman.NewCollector(m))
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics server stopped: %v", err)
			}
		}()
	}

	if tracePath != "" {
		err = replayTrace(m, tracePath, sanity)
	} else {
		err = runSynthetic(m, n, parallel, seed, sanity)
	}
	if err != nil {
		return err
	}

	printSummary(m)
	return nil
}

// traceLine is one JSON-encoded operation in a trace file, one per line.
type traceLine struct {
	Op      string `json:"op"`
	Addr    uint64 `json:"addr,omitempty"`
	Size    uint64 `json:"size,omitempty"`
	NewSize uint64 `json:"new_size,omitempty"`
}

func replayTrace(m *vmman.ManagedRange, path string, sanity bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		var tl traceLine
		if err := json.Unmarshal(scanner.Bytes(), &tl); err != nil {
			return fmt.Errorf("trace line %d: %w", lineNo, err)
		}
		if err := applyTraceLine(m, tl); err != nil {
			return fmt.Errorf("trace line %d: %w", lineNo, err)
		}
		if sanity && !m.IsSane() {
			return fmt.Errorf("sanity violated after trace line %d", lineNo)
		}
	}
	return scanner.Err()
}

func applyTraceLine(m *vmman.ManagedRange, tl traceLine) error {
	switch tl.Op {
	case "map":
		_, err := m.Map(0, vmman.Size(tl.Size), vmman.ProtRead|vmman.ProtWrite, vmman.FlagAnonymous|vmman.FlagPrivate)
		return err
	case "unmap":
		return m.Unmap(vmman.Addr(tl.Addr), vmman.Size(tl.Size))
	case "remap":
		_, err := m.Remap(vmman.Addr(tl.Addr), vmman.Size(tl.Size), vmman.Size(tl.NewSize), vmman.MayMove)
		return err
	default:
		return fmt.Errorf("unrecognized op %q", tl.Op)
	}
}

// runSynthetic fans n operations out across parallel workers, each
// driving its own workload.Generator (seeded distinctly) against the
// shared manager. The manager's own mutex is what makes this safe;
// errgroup just bounds the fan-out and surfaces the first hard error.
func runSynthetic(m *vmman.ManagedRange, n, parallel int, seed int64, sanity bool) error {
	if parallel < 1 {
		parallel = 1
	}
	perWorker := n / parallel

	g := new(errgroup.Group)
	for worker := 0; worker < parallel; worker++ {
		worker := worker
		g.Go(func() error {
			gen := workload.NewGenerator(workload.DefaultConfig(seed + int64(worker)))
			for i := 0; i < perWorker; i++ {
				req := gen.Next()
				ok, err := workload.Apply(gen, m, req)
				gen.Release(req)
				if !ok && err != nil {
					if _, isVMErr := err.(*vmman.Error); !isVMErr {
						return err
					}
				}
				if sanity && !m.IsSane() {
					return fmt.Errorf("sanity violated after worker %d op %d", worker, i)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func printSummary(m *vmman.ManagedRange) {
	fmt.Printf("manager %s: sane=%v regions=%d last_error=%q\n", m.ID(), m.IsSane(), m.RegionCount(), m.LastError())
}
