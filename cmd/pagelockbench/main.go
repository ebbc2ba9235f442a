// Command pagelockbench drives a configurable number of goroutines against
// a shared pagelock.Table, contending for a small fixed set of pages at a
// chosen write ratio, and reports the total number of lock/unlock cycles
// the workers completed. It is a runnable counterpart to the teacher's workload-table
// benchmarks.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/btreeflow/pagelock"
)

type nopHost struct{}

func (nopHost) ReadPage(pagelock.Blkno, uint32) (pagelock.PageImage, bool) {
	return pagelock.PageImage{Rightmost: true}, true
}
func (nopHost) IncUsageCount(pagelock.Blkno, bool)       {}
func (nopHost) ReserveUndoSize(pagelock.TupleKind) uint32 { return 0 }
func (nopHost) GiveUpUndoSize(pagelock.TupleKind)         {}
func (nopHost) WaitStart()                                {}
func (nopHost) WaitEnd()                                   {}
func (nopHost) CritSectionStart()                          {}
func (nopHost) CritSectionEnd()                            {}

func main() {
	var (
		workers    = pflag.IntP("workers", "w", 10, "concurrent goroutines")
		pages      = pflag.IntP("pages", "p", 10, "number of pages contended over")
		writeRatio = pflag.Float64P("write-ratio", "r", 0.1, "fraction of acquires taken as block_reads writers")
		duration   = pflag.DurationP("duration", "d", 2*time.Second, "how long to run")
		verbose    = pflag.BoolP("verbose", "v", false, "enable debug logging")
	)
	pflag.Parse()

	if *verbose {
		pagelock.SetLogger(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(zerolog.DebugLevel).With().Timestamp().Logger())
	}

	table := pagelock.NewTable(pagelock.DefaultConfig(pagelock.WithMaxProcs(*workers)), nopHost{}, nil)
	blknos := make([]pagelock.Blkno, *pages)
	for i := range blknos {
		blknos[i] = table.AllocatePage()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var cycles int64
	var g errgroup.Group
	for w := 0; w < *workers; w++ {
		worker := uint32(w)
		g.Go(func() error {
			rng := rand.New(rand.NewSource(int64(worker) + 1))
			for ctx.Err() == nil {
				blkno := blknos[rng.Intn(len(blknos))]
				table.Lock(worker, blkno)
				if rng.Float64() < *writeRatio {
					table.BlockReads(worker, blkno)
				}
				table.Unlock(worker, blkno)
				atomic.AddInt64(&cycles, 1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, "pagelockbench:", err)
		os.Exit(1)
	}

	fmt.Printf("workers=%d pages=%d write_ratio=%.2f duration=%s cycles=%d\n",
		*workers, *pages, *writeRatio, *duration, atomic.LoadInt64(&cycles))
}
