package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"idleforge/internal/api"
	"idleforge/internal/config"
	"idleforge/internal/content"
	"idleforge/internal/save"
	"idleforge/internal/sim"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables only")
	}

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	simCfg := appConfig.Sim
	busCfg := appConfig.Bus
	serverCfg := appConfig.Server
	paths := appConfig.Paths

	log.Printf("Step size: %.0fms, frame: %dms, queue limit: %d",
		simCfg.StepSizeMs, simCfg.FrameMs, simCfg.CommandQueueLimit)

	// Load the content pack
	pack, err := content.LoadFile(paths.ContentPath)
	if err != nil {
		log.Fatalf("Failed to load content pack %s: %v", paths.ContentPath, err)
	}
	log.Printf("Content pack loaded: %d resources, %d generators, %d upgrades, %d prestige layers",
		len(pack.Resources), len(pack.Generators), len(pack.Upgrades), len(pack.Layers))

	// Start debug server
	debugCfg := api.DefaultObservabilityConfig()
	debugCfg.Enabled = appConfig.Observability.Enabled
	debugCfg.ListenAddr = appConfig.Observability.ListenAddr
	if err := api.StartDebugServer(debugCfg); err != nil {
		log.Printf("Debug server disabled: %v", err)
	}

	// Build the runtime with Prometheus-backed telemetry
	runtime, err := sim.NewRuntime(pack, sim.RuntimeConfig{
		Scheduler: sim.SchedulerConfig{
			StepSizeMs:                 simCfg.StepSizeMs,
			MaxForegroundStepsPerFrame: simCfg.MaxForegroundStepsPerFrame,
			MaxBackgroundStepsPerFrame: simCfg.MaxBackgroundStepsPerFrame,
			MaxOfflineCatchUpMs:        simCfg.MaxOfflineCatchUpMs,
			MaxOfflineBatchSteps:       simCfg.MaxOfflineBatchSteps,
		},
		Coordinator: sim.CoordinatorConfig{
			CommandQueueLimit: simCfg.CommandQueueLimit,
			Bus: sim.BusConfig{
				ChannelCapacity: busCfg.ChannelCapacity,
				SoftLimit:       busCfg.SoftLimit,
				CooldownSteps:   busCfg.CooldownSteps,
				WindowSteps:     busCfg.WindowSteps,
			},
		},
		FrameMs:     simCfg.FrameMs,
		JournalPath: paths.JournalPath,
	}, api.PromSink{})
	if err != nil {
		log.Fatalf("Failed to build runtime: %v", err)
	}

	// Restore persisted state and replay offline time before starting
	if saved, err := save.LoadFile(paths.SavePath); err != nil {
		log.Printf("Save file ignored: %v", err)
	} else if saved != nil {
		if err := runtime.Coordinator().HydrateResources(saved.Resources); err != nil {
			log.Printf("Hydration failed: %v", err)
		} else {
			log.Printf("Save restored from step %d", saved.Step)
			elapsedMs := float64(time.Now().UnixMilli() - saved.SavedAtUnixMs)
			if elapsedMs > 0 {
				result := runtime.CatchUp(elapsedMs)
				log.Printf("Offline catch-up: %.0fms requested, %.0fms simulated, %d steps, %.0fms overflow",
					result.RequestedMs, result.SimulatedMs, result.ExecutedSteps, result.OverflowMs)
			}
		}
	}

	saveState := func() error {
		coord := runtime.Coordinator()
		return save.WriteFile(paths.SavePath, &save.File{
			Version:       save.CurrentVersion,
			SavedAtUnixMs: time.Now().UnixMilli(),
			Step:          coord.LastProcessedStep(),
			Resources:     coord.ExportResources(),
		})
	}

	// Start the simulation loop
	runtime.Start()
	log.Println("Simulation runtime started")

	// Start API server in goroutine
	api.SetAllowedOrigin(serverCfg.AllowedOrigin)
	server := api.NewServer(runtime, saveState)

	go func() {
		addr := ":" + strconv.Itoa(serverCfg.Port)
		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("Server ready. Press Ctrl+C to stop.")
	<-quit

	log.Println("Shutting down...")
	server.Stop()
	runtime.Stop()
	if err := saveState(); err != nil {
		log.Printf("Final save failed: %v", err)
	} else {
		log.Printf("State saved to %s", paths.SavePath)
	}
	log.Println("Goodbye!")
}
