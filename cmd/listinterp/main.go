// Command listinterp is a smoke-test driver for package sggc: it builds a
// long chain of pairs and vectors through listinterp.Heap, forcing periodic
// collections after every 100th loop iteration (a minor collection), every
// 500th (level 1) and every 2000th (level 2), where each iteration allocates
// one vector and one pair, and prints the collector's final Info counters.
package main

import (
	"fmt"
	"os"

	"github.com/bearlytools/sggc/handle"
	"github.com/bearlytools/sggc/listinterp"
	"github.com/gostdlib/base/context"
)

func main() {
	ctx := context.Background()

	h, err := listinterp.New(ctx, 20000)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init:", err)
		os.Exit(1)
	}
	c := h.Collector()

	var tail handle.H = h.Nil()
	unprotect := h.Protect(&tail)
	defer unprotect()

	for i := 0; i < 50000; i++ {
		v := h.NewVector(ctx, []int32{int32(i), int32(i + 1)})
		p := h.NewPair(ctx)
		h.SetPair(p, v, tail)
		tail = p

		switch {
		case i%2000 == 1999:
			c.Collect(ctx, 2)
		case i%500 == 499:
			c.Collect(ctx, 1)
		case i%100 == 99:
			c.Collect(ctx, 0)
		}
	}

	info := c.Info()
	fmt.Printf("gen0=%d gen1=%d gen2=%d uncol=%d bigChunks=%d\n",
		info.Gen0Count, info.Gen1Count, info.Gen2Count, info.UncolCount, info.BigChunks)
}
