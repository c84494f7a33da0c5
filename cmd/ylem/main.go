// Command ylem runs the ylem compiler version selected with 'yvm use',
// forwarding its arguments, standard streams and exit code.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/core-coin/yvm/pkg/config"
	"github.com/core-coin/yvm/pkg/launcher"
	"github.com/core-coin/yvm/pkg/registry"
	"github.com/core-coin/yvm/pkg/yvmerr"
	"github.com/pkg/errors"
)

func main() {
	log.SetHandler(cli.New(os.Stderr))
	log.SetLevel(log.WarnLevel)
	if os.Getenv("YVM_DEBUG") != "" {
		log.SetLevel(log.DebugLevel)
	}

	// Stay alive on interrupt so the child's exit code can be forwarded.
	// Catch rather than ignore: an ignored signal stays ignored across exec.
	signal.Notify(make(chan os.Signal, 1), os.Interrupt)

	os.Exit(run(context.Background(), os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	cfg, _, err := config.LoadOrDefault("")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return launcher.FallbackExitCode
	}

	code, err := launcher.Run(ctx, registry.New(cfg.DataDir), args, launcher.Stdio{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	if err != nil {
		if errors.Is(err, yvmerr.ErrGlobalVersionNotSet) {
			fmt.Fprintln(os.Stderr, "No ylem version selected. Run 'yvm install <version>' or 'yvm use <version>' first.")
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	return code
}
