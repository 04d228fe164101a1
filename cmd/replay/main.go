package main

import (
	"flag"
	"fmt"
	"os"

	persistlog "sandfall.io/internal/persistence/log"
	"sandfall.io/internal/persistence/snapshot"
)

func main() {
	var (
		snapPath  = flag.String("snapshot", "", "path to final.snap.zst")
		grainPath = flag.String("grains", "", "grain log grains.jsonl.zst (optional)")
		maxGrains = flag.Int("max_grains", 0, "safety limit for the re-run (0 = none)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("snapshot v%d run=%s mode=%s source=%d,%d grains=%d rocks=%d sand=%d outcome=%s\n",
		snap.Header.Version, snap.Header.RunID, snap.Header.Mode, snap.Source[0], snap.Source[1],
		snap.Header.Grains, len(snap.Rocks), len(snap.Sand), snap.Outcome)

	var entries []persistlog.GrainEntry
	if *grainPath != "" {
		entries, err = persistlog.ReadGrainLog(*grainPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read grain log:", err)
			os.Exit(1)
		}
	}

	rep, err := verify(snap, entries, *maxGrains)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: grains=%d checked=%d digest=%s\n", rep.Grains, rep.Checked, rep.Digest)
}
