package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ghalamif/EdgeTap"
	"github.com/ghalamif/EdgeTap/internal/adapters/serialport"
	"github.com/ghalamif/EdgeTap/internal/app/playback"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().
	Timestamp().
	Int("pid", os.Getpid()).
	Logger()

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "playback":
		err = playbackCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "ports":
		err = portsCommand()
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		logger.Fatal().Err(err).Str("command", cmd).Msg("edgetap failed")
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flow, err := edgetap.Conf(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := edgetap.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Printf("config %s looks good (source=%s log=%s forward=%t)\n",
		*cfgPath, cfg.Source.Kind, cfg.Log.Path, cfg.Forward.Enabled())
	return nil
}

// playbackCommand replays a durable log offline: records go to stdout as
// JSON lines, skipped lines to stderr.
func playbackCommand(args []string) error {
	fs := flag.NewFlagSet("playback", flag.ExitOnError)
	logPath := fs.String("log", "./data/sensor_data.jsonl", "Path to the durable log")
	k := fs.Int("k", playback.DefaultWindow, "Number of trailing lines to replay")
	summary := fs.Bool("summary", false, "Print the fault summary instead of records")
	threshold := fs.Float64("threshold", playback.DefaultAnomalyThreshold, "Anomaly score threshold for -summary")
	if err := fs.Parse(args); err != nil {
		return err
	}

	window := *k
	if window <= 0 {
		window = playback.DefaultWindow
	}
	res, err := playback.NewPlayer(*logPath, window, nil).Replay(window)
	if err != nil {
		return err
	}

	for _, sk := range res.Skipped {
		fmt.Fprintf(os.Stderr, "skipped %v\n", sk)
	}

	enc := json.NewEncoder(os.Stdout)
	if *summary {
		enc.SetIndent("", "  ")
		return enc.Encode(playback.Summarize(res.Records, *threshold))
	}
	for _, rec := range res.Records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func portsCommand() error {
	names, err := serialport.ListPorts()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(ctx, *url); err != nil {
				logger.Warn().Err(err).Msg("stats poll failed")
			}
		}
	}
}

var statsTargets = []string{
	"edgetap_records_ingested_total",
	"edgetap_parse_errors_total",
	"edgetap_log_write_errors_total",
	"edgetap_buffer_length",
	"edgetap_log_size_bytes",
	"edgetap_forward_queue_length",
}

func printMetricsSnapshot(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values := make(map[string]float64, len(statsTargets))
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, key := range statsTargets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					values[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("[%s] records=%.0f parse_errors=%.0f write_errors=%.0f buffered=%.0f log_bytes=%.0f queue=%.0f\n",
		time.Now().Format(time.RFC3339),
		values["edgetap_records_ingested_total"],
		values["edgetap_parse_errors_total"],
		values["edgetap_log_write_errors_total"],
		values["edgetap_buffer_length"],
		values["edgetap_log_size_bytes"],
		values["edgetap_forward_queue_length"],
	)
	return nil
}

func printUsage() {
	fmt.Printf(`EdgeTap CLI

Usage:
  edgetap <command> [flags]

Commands:
  run        Start the serial ingestor, forwarding and HTTP surface from a config
  validate   Load and validate a config file without starting the runtime
  playback   Replay the tail of a durable log, skipping corrupt lines
  stats      Poll the Prometheus metrics endpoint and print live counters
  ports      List serial ports visible on this host

Examples:
  edgetap run -config ./data/config.yaml
  edgetap validate -config ./data/config.yaml
  edgetap playback -log ./data/sensor_data.jsonl -k 200 -summary
  edgetap stats -url http://localhost:9100/metrics -interval 1s
`)
}
