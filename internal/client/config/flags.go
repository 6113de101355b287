package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/shopsync/internal/flagx"
)

// parseFlags populates Config fields from the short flags listed in doc.go.
// os.Args is filtered first so flags owned by other loaders do not break
// parsing.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-f", "-i", "-y", "-o", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.DatabasePath, "f", cfg.DatabasePath, "local database file")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	syncInterval := fs.Int("y", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")
	overlap := fs.Int("o", int(cfg.WatermarkOverlap.Milliseconds()), "pull watermark overlap (in milliseconds)")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
	cfg.WatermarkOverlap = time.Duration(*overlap) * time.Millisecond
	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
