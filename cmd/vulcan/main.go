// Vulcan CLI - inspect backend metadata snapshots and layout digests
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/vulcan/arch"
	"github.com/chazu/vulcan/asm"
	"github.com/chazu/vulcan/meta"
	"github.com/chazu/vulcan/metastore"
	"github.com/chazu/vulcan/vmconfig"
)

var log = commonlog.GetLogger("vulcan")

func main() {
	verbose := flag.Int("v", 0, "Verbosity (0-2)")
	snapshotPath := flag.String("snapshot", "", "Metadata snapshot file (.vsnap)")
	configPath := flag.String("config", "", "vulcan.toml path (default: search upward from cwd)")
	storePath := flag.String("store", "layouts.db", "Layout digest database (used with record/verify)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vulcan [options] <command>\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  inspect   Print field tables, annotations, and operands for a snapshot\n")
		fmt.Fprintf(os.Stderr, "  record    Record layout digests for the snapshot's classes\n")
		fmt.Fprintf(os.Stderr, "  verify    Check the snapshot's classes against recorded digests\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  vulcan -snapshot app.vsnap inspect\n")
		fmt.Fprintf(os.Stderr, "  vulcan -snapshot app.vsnap -store layouts.db record\n")
		fmt.Fprintf(os.Stderr, "  vulcan -snapshot app.vsnap -store layouts.db verify\n")
	}
	flag.Parse()

	commonlog.Configure(*verbose, nil)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	config, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	universe, snapshot, err := loadSnapshot(*snapshotPath, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading snapshot: %v\n", err)
		os.Exit(1)
	}

	switch args[0] {
	case "inspect":
		handleInspect(universe)
	case "record":
		handleRecord(universe, snapshot, *storePath)
	case "verify":
		handleVerify(universe, *storePath)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		os.Exit(1)
	}
}

func loadConfig(path string) (*vmconfig.Config, error) {
	if path != "" {
		return vmconfig.Load(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return vmconfig.FindAndLoad(cwd)
}

func loadSnapshot(path string, config *vmconfig.Config) (*meta.Universe, *meta.Snapshot, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("no snapshot given (use -snapshot)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	snapshot, err := meta.UnmarshalSnapshot(data)
	if err != nil {
		return nil, nil, err
	}
	log.Infof("loaded snapshot %s (%d classes)", snapshot.ID, len(snapshot.Classes))

	universe, err := snapshot.Restore(config)
	if err != nil {
		return nil, nil, err
	}
	return universe, snapshot, nil
}

// handleInspect prints each class's field table: offsets, modifiers,
// annotation presence, and the memory operand a field access compiles to
// (receiver in r0 by convention).
func handleInspect(u *meta.Universe) {
	for _, c := range u.Classes() {
		if c.Superclass() != nil {
			fmt.Printf("%s (extends %s)\n", c.Name(), c.Superclass().Name())
		} else {
			fmt.Printf("%s\n", c.Name())
		}
		for i, f := range c.Fields() {
			operand := asm.NewAddress(arch.R0, f.Offset())
			marks := ""
			if f.IsStatic() {
				marks += " static"
			}
			if f.IsInternal() {
				marks += " internal"
			}
			if f.IsStable() {
				marks += " stable"
			}
			if f.HasAnnotations() {
				marks += fmt.Sprintf(" @%d", len(f.Annotations()))
			}
			fmt.Printf("  [%2d] %-20s %-20s %-12s%s\n",
				i, c.FieldName(i), f.Type().TypeName(), operand, marks)
		}
	}
}

func handleRecord(u *meta.Universe, s *meta.Snapshot, storePath string) {
	store, err := metastore.Open(storePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.RecordAll(u, s.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Error recording layouts: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Recorded %d class layouts\n", u.Len())
}

func handleVerify(u *meta.Universe, storePath string) {
	store, err := metastore.Open(storePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	drifted, err := store.Verify(u)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error verifying layouts: %v\n", err)
		os.Exit(1)
	}
	if len(drifted) == 0 {
		fmt.Println("All recorded layouts match")
		return
	}
	for _, d := range drifted {
		fmt.Printf("DRIFT %s\n  recorded %s\n  current  %s\n", d.Class, d.Recorded, d.Current)
	}
	os.Exit(1)
}
