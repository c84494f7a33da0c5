package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/apex/log"
	"github.com/core-coin/yvm/pkg/config"
	"github.com/core-coin/yvm/pkg/resolve"
	"github.com/core-coin/yvm/pkg/yvm"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// loadConfig loads the config file named by --config, or the default one,
// and applies the --data-dir override
func loadConfig() (*config.Config, error) {
	cfg, path, err := config.LoadOrDefault(configFile)
	if err != nil {
		log.WithError(err).Error("Failed to load config")
		return nil, err
	}
	if path != "" {
		log.Debugf("Loaded config from %s", path)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	log.Debugf("Data directory: %s", cfg.DataDir)
	return cfg, nil
}

// newManager creates the version manager used by commands. Tests replace it
// to point commands at a fake release server.
var newManager = func(cmd *cobra.Command, opts ...yvm.Option) (*yvm.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	m, err := yvm.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := m.Registry().Setup(); err != nil {
		return nil, err
	}
	return m, nil
}

// stdin is read by confirmation prompts
var stdin io.Reader = os.Stdin

// isInteractive reports whether prompts can be answered
var isInteractive = func() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// confirm asks a yes/no question, defaulting to yes. With --yes it answers
// itself; without a terminal to ask it declines.
func confirm(cmd *cobra.Command, question string) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if !isInteractive() {
		log.Warnf("%s Skipped: not a terminal, pass --yes to confirm", question)
		return false, nil
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%s [Y/n] ", question)
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	switch strings.TrimSpace(line) {
	case "", "y", "Y", "yes", "Yes":
		return true, nil
	default:
		return false, nil
	}
}

// parseVersionArg parses a version argument. "latest" resolves to the
// newest version available for this platform.
func parseVersionArg(m *yvm.Manager, arg string) (*semver.Version, error) {
	if arg == resolve.Latest {
		return resolve.Version(m.Catalog(), arg)
	}
	return resolve.Parse(arg)
}

// downloadProgress renders a progress bar for one download at a time
type downloadProgress struct {
	w           io.Writer
	description string
	bar         *progressbar.ProgressBar
}

func newDownloadProgress(w io.Writer) *downloadProgress {
	return &downloadProgress{w: w}
}

// Start prepares a new bar for the next download
func (p *downloadProgress) Start(description string) {
	p.Finish()
	p.description = description
}

// Report is a fetch.ProgressFunc
func (p *downloadProgress) Report(downloaded, total int64) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions64(
			total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetDescription(p.description),
			progressbar.OptionThrottle(80*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	p.bar.Set64(downloaded)
}

// Finish clears the current bar, if any
func (p *downloadProgress) Finish() {
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}
