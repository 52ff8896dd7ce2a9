package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeusync/markov/internal/config"
	"github.com/zeusync/markov/internal/core/markov"
	"github.com/zeusync/markov/internal/core/observability/log"
	"github.com/zeusync/markov/internal/injector"
)

func main() {
	configFlag := flag.String("config", os.Getenv("MARKOV_CONFIG"), "Config file (default markov.yaml)")
	brainFlag := flag.String("brain", "", "Brain file, overrides brain_path")
	backendFlag := flag.String("backend", "", "Backend name, overrides backend")
	debugFlag := flag.Bool("debug", false, "Log debug output")

	flag.Usage = showHelp
	flag.Parse()

	cfg, found, err := config.Load(*configFlag)
	if err != nil {
		fatal("%v", err)
	}
	if *brainFlag != "" {
		cfg.BrainPath = *brainFlag
	}
	if *backendFlag != "" {
		cfg.Backend = *backendFlag
	}
	if *debugFlag {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fatal("%v", err)
	}

	args := flag.Args()
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		if !found {
			if err := cfg.Write(""); err != nil {
				fatal("write default config: %v", err)
			}
			fmt.Printf("A config has been generated at %s.\n", cfg.Path())
		}
		cmdServe(cfg)
	case "train":
		if len(args) != 1 {
			fatal("usage: markov train <file.txt>")
		}
		cmdTrain(cfg, args[0])
	case "migrate":
		if len(args) != 2 {
			fatal("usage: markov migrate <brain.txt> <brain.sqlite>")
		}
		cmdMigrate(cfg, args[0], args[1])
	case "chat":
		cmdChat(cfg)
	case "help":
		showHelp()
	default:
		fatal("unknown command %q", command)
	}
}

func cmdServe(cfg *config.Config) {
	app, cleanup, err := injector.InitializeApp(cfg)
	if err != nil {
		fatal("%v", err)
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)

	if err := app.Server.Start(ctx); err != nil {
		app.Logger.Error("Error starting server", log.Error(err))
		return
	}

	saved := make(chan error, 1)
	go func() {
		saved <- markov.SaveEvery(ctx, app.Backend, cfg.SaveInterval, app.Logger)
	}()

	<-stopCh
	app.Logger.Info("Shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := app.Server.Stop(stopCtx); err != nil {
		app.Logger.Error("Error stopping server", log.Error(err))
	}

	cancel()
	if err := <-saved; err != nil {
		app.Logger.Error("Final save failed", log.Error(err))
	}

	app.Logger.Info("Saving config", log.String("path", cfg.Path()))
	if err := cfg.Write(""); err != nil {
		app.Logger.Error("Failed to save config", log.Error(err))
	}
}

func cmdTrain(cfg *config.Config, path string) {
	core, cleanup, err := injector.InitializeCore(cfg)
	if err != nil {
		fatal("%v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Training...")
	n, err := markov.TrainFile(ctx, core.Backend, path, cfg.TrainWorkers, core.Logger)
	if err != nil {
		core.Logger.Error("Training failed", log.Int("lines", n), log.Error(err))
		return
	}
	fmt.Printf("Training complete! Learned %d lines.\n", n)
}

func cmdMigrate(cfg *config.Config, textPath, sqlPath string) {
	if _, err := os.Stat(sqlPath); err == nil {
		fatal("%s already exists", sqlPath)
	}

	logger, cleanup, err := injector.ProvideLogger(cfg)
	if err != nil {
		fatal("%v", err)
	}
	defer cleanup()

	dst, err := markov.OpenStore(markov.BackendMarkovSQL, sqlPath, logger)
	if err != nil {
		fatal("%v", err)
	}

	n, err := markov.Migrate(textPath, dst, logger)
	err = errors.Join(err, dst.Close())
	if err != nil {
		logger.Error("Migration failed", log.Error(err))
		return
	}
	fmt.Printf("Migrated %d entries to %s.\n", n, sqlPath)
}

// cmdChat talks to the backend on stdin and stdout, learning every line.
func cmdChat(cfg *config.Config) {
	core, cleanup, err := injector.InitializeCore(cfg)
	if err != nil {
		fatal("%v", err)
	}
	defer cleanup()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := scanner.Text()

		reply, err := core.Backend.Reply(line)
		if err != nil {
			core.Logger.Error("Reply failed", log.Error(err))
		} else if reply != "" {
			fmt.Println(reply)
		}

		if cfg.Learning {
			if err := core.Backend.Learn(line); err != nil {
				core.Logger.Error("Learn failed", log.Error(err))
			}
		}
		fmt.Print("> ")
	}
	fmt.Println()
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func showHelp() {
	fmt.Fprint(os.Stderr, `markov - a chat bot that talks back in markov chains

USAGE:
  markov [flags] [command] [args]

COMMANDS:
  serve                          Run the chat gateway (default)
  train <file.txt>               Learn every line of a text file
  migrate <brain.txt> <brain.db> Copy a text brain into a new sqlite brain
  chat                           Talk to the bot on the terminal
  help                           Show this help

FLAGS:
`)
	flag.PrintDefaults()
}
