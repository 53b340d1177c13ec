// Replay reconstructs simulation state from a command journal.
//
// It loads the same content pack the server ran with, replays every
// journaled command at its recorded step, and prints the resulting
// state digest. Two replays of the same journal against the same pack
// always print the same digest; a mismatch against a live server means
// the pack changed or the journal is incomplete.
//
// USAGE:
//
//	go run ./cmd/replay -content content/pack.yaml -journal data/commands.ndjson
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"idleforge/internal/config"
	"idleforge/internal/content"
	"idleforge/internal/sim"
)

func main() {
	paths := config.PathsFromEnv()
	simCfg := config.SimFromEnv()

	contentPath := flag.String("content", paths.ContentPath, "content pack path")
	journalPath := flag.String("journal", paths.JournalPath, "command journal path")
	verbose := flag.Bool("v", false, "log each replayed command")
	flag.Parse()

	pack, err := content.LoadFile(*contentPath)
	if err != nil {
		log.Fatalf("Failed to load content pack: %v", err)
	}

	commands, err := readJournal(*journalPath)
	if err != nil {
		log.Fatalf("Failed to read journal: %v", err)
	}

	coord, err := sim.NewCoordinator(pack, sim.CoordinatorConfig{
		StepSizeMs:        simCfg.StepSizeMs,
		CommandQueueLimit: simCfg.CommandQueueLimit,
	}, sim.NopSink{})
	if err != nil {
		log.Fatalf("Failed to build coordinator: %v", err)
	}

	var lastStep uint64
	if len(commands) > 0 {
		lastStep = commands[len(commands)-1].Step
	}

	// Walk steps in order, feeding each command into the queue just
	// before the step it was recorded on.
	next := 0
	for step := uint64(1); step <= lastStep; step++ {
		for next < len(commands) && commands[next].Step <= step {
			cmd := commands[next]
			if *verbose {
				log.Printf("step %d: %s (%s)", step, cmd.Type, cmd.Priority)
			}
			coord.EnqueueCommand(cmd)
			next++
		}
		coord.Step(sim.StepContext{Step: step})
	}

	fmt.Printf("commands: %d\n", len(commands))
	fmt.Printf("steps:    %d\n", lastStep)
	fmt.Printf("digest:   %016x\n", coord.StateDigest())
}

// readJournal parses the NDJSON command journal. Lines that fail to
// parse are skipped with a warning; a torn final line from an unclean
// shutdown is expected.
func readJournal(path string) ([]sim.Command, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var commands []sim.Command
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		var cmd sim.Command
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			log.Printf("skipping malformed journal line %d: %v", line, err)
			continue
		}
		commands = append(commands, cmd)
	}
	return commands, scanner.Err()
}
