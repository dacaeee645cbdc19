// Command annotate runs the subtitle pipeline over saved player pages.
//
//	annotate -in episode01.html [-out annotated.html]
//	annotate -watch ./snapshots
//
// Configuration flags and environment variables are shared with the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/subtitlelens/subtitlelens-server/internal/annotate"
	"github.com/subtitlelens/subtitlelens-server/internal/di"
	"github.com/subtitlelens/subtitlelens-server/internal/logger"
	"github.com/subtitlelens/subtitlelens-server/internal/watcher"
)

var (
	inPath    = flag.String("in", "", "Snapshot to annotate (\"-\" reads stdin)")
	outPath   = flag.String("out", "", "Output file (default: <in>.annotated.html, stdout for stdin)")
	watchPath = flag.String("watch", "", "Snapshot file or directory to re-annotate on change")
)

func main() {
	// Annotated pages may go to stdout, so logs default to stderr here.
	if _, ok := os.LookupEnv("LOG_OUTPUT"); !ok {
		_ = os.Setenv("LOG_OUTPUT", "stderr")
	}

	injector := di.NewContainer()
	if err := di.Bootstrap(injector, false); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	log := do.MustInvoke[*logger.Logger](injector)
	annotator := do.MustInvoke[*annotate.Annotator](injector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := run(ctx, annotator, log)
	stop()

	if shutdownErr := injector.Shutdown(); shutdownErr != nil {
		log.Error("Shutdown error", "error", shutdownErr)
	}
	if err != nil {
		log.Error("annotate failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *annotate.Annotator, log *logger.Logger) error {
	switch {
	case *watchPath != "":
		w, err := watcher.New(log.WithComponent("watcher"), watcher.Options{})
		if err != nil {
			return err
		}
		defer w.Stop() //nolint:errcheck // best effort on exit
		if err := w.Watch(*watchPath); err != nil {
			return err
		}
		go w.Start(ctx) //nolint:errcheck // returns when ctx is canceled
		log.Info("watching snapshots", "path", *watchPath)
		return a.Watch(ctx, w)

	case *inPath == "-":
		out := os.Stdout
		if *outPath != "" {
			f, err := os.Create(*outPath)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		_, err := a.Annotate(ctx, os.Stdin, out)
		return err

	case *inPath != "":
		out := *outPath
		if out == "" {
			out = annotate.OutputPath(*inPath)
		}
		_, err := a.AnnotateFile(ctx, *inPath, out)
		return err

	default:
		flag.Usage()
		return fmt.Errorf("one of -in or -watch is required")
	}
}
