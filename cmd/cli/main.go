package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/WhisperJar/pkg/logger"
	"github.com/himanishpuri/WhisperJar/pkg/models"
	"github.com/himanishpuri/WhisperJar/pkg/utils"
	"github.com/himanishpuri/WhisperJar/pkg/whisperjar"
	"github.com/himanishpuri/WhisperJar/pkg/whisperjar/audio"
)

// Global flags
var (
	dataDir    string
	dbPath     string
	deviceName string
	maxLength  time.Duration
)

func init() {
	defaultDir, err := utils.DocumentsDir()
	if err != nil {
		defaultDir = "."
	}
	flag.StringVar(&dataDir, "data", getEnvOrDefault("WHISPERJAR_DATA_DIR", defaultDir), "Directory for clips and the catalog")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("WHISPERJAR_DB_PATH", ""), "Path to the SQLite catalog (default <data>/whispers.db)")
	flag.StringVar(&deviceName, "device", getEnvOrDefault("WHISPERJAR_DEVICE", "arecord"), "Audio device: "+strings.Join(deviceNames(), ", "))
	flag.DurationVar(&maxLength, "max", getDurationEnvOrDefault("WHISPERJAR_MAX_LENGTH", whisperjar.DefaultMaxLength), "Longest recording before it stops on its own")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		logger.Warnf("Ignoring %s=%q: not a duration", key, value)
	}
	return defaultValue
}

// createService creates a new WhisperJar service with configured options.
// The returned func releases the audio device.
func createService() (whisperjar.Service, func(), error) {
	dev, err := openDevice(deviceName)
	if err != nil {
		return nil, nil, err
	}
	svc, err := whisperjar.NewService(
		whisperjar.WithDataDir(dataDir),
		whisperjar.WithDBPath(dbPath),
		whisperjar.WithMaxLength(maxLength),
		whisperjar.WithInputDevice(dev.input),
		whisperjar.WithOutputDevice(dev.output),
	)
	if err != nil {
		dev.close()
		return nil, nil, err
	}
	return svc, func() {
		if err := svc.Close(); err != nil {
			logger.Errorf("Closing service: %v", err)
		}
		dev.close()
	}, nil
}

func main() {
	log := logger.GetLogger()

	flag.Usage = printUsage
	flag.Parse()

	printBanner()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]
	log.Debugf("Executing command: %s", command)

	var err error
	switch command {
	case "record":
		err = handleRecord()
	case "list":
		err = handleList(args)
	case "play":
		err = handlePlay(args)
	case "rename":
		err = handleRename(args)
	case "show":
		err = handleShow(args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	// The handler's deferred Close has already finalized any recording.
	if err != nil {
		fmt.Printf("\n❌ %v\n", err)
		log.Errorf("%s: %v", command, err)
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
 _       ____    _                       __
| |     / / /_  (_)________  ___  _____ / /___ ______
| | /| / / __ \/ / ___/ __ \/ _ \/ ___// / __ '/ ___/
| |/ |/ / / / / (__  ) /_/ /  __/ / __/ / /_/ / /
|__/|__/_/ /_/_/____/ .___/\___/_/ /___/\__,_/_/
                   /_/
              Tiny voice memo recorder
`
	fmt.Println(banner)
}

func printUsage() {
	fmt.Println("Usage: whisperjar [flags] <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  record               Record a clip; press Enter or Ctrl-C to stop")
	fmt.Println("  list [--all|--since d] List recorded clips")
	fmt.Println("  play <id>            Play a clip")
	fmt.Println("  rename <id> <name>   Set a clip's name")
	fmt.Println("  show <id>            Show clip and audio file details")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

func parseID(args []string, usage string) uint {
	if len(args) < 1 {
		fmt.Println("Usage: whisperjar " + usage)
		os.Exit(1)
	}
	id, err := strconv.ParseUint(args[0], 10, 0)
	if err != nil || id == 0 {
		fmt.Printf("Error: invalid clip ID %q\n", args[0])
		os.Exit(1)
	}
	return uint(id)
}

func handleRecord() error {
	log := logger.GetLogger()

	svc, closeSvc, err := createService()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer closeSvc()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clip, err := svc.StartRecording(ctx)
	if err != nil {
		return fmt.Errorf("failed to start recording: %w", err)
	}
	rec := svc.Recorder()
	fmt.Printf("🎙️  Recording clip %d (max %s), press Enter to stop\n", clip.ID, rec.MaxLength())
	log.Infof("Recording clip %d to %s", clip.ID, clip.FileName)

	type autoOutcome struct {
		results <-chan whisperjar.Result
		err     error
	}
	auto := make(chan autoOutcome, 1)
	go func() {
		results, err := rec.AutoStop(ctx, 100*time.Millisecond)
		auto <- autoOutcome{results, err}
	}()

	enter := make(chan struct{})
	go func() {
		bufio.NewReader(os.Stdin).ReadString('\n')
		close(enter)
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var (
		saved    *models.Clip
		autoSeen bool
	)
	for saved == nil {
		select {
		case <-ticker.C:
			printMeter(rec)
			continue
		case out := <-auto:
			autoSeen = true
			if out.err != nil && !errors.Is(out.err, context.Canceled) {
				return fmt.Errorf("auto stop failed: %w", out.err)
			}
			if out.results != nil {
				fmt.Println("\n⏱️  Reached max length")
				res := <-out.results
				if res.Err != nil {
					return fmt.Errorf("failed to save recording: %w", res.Err)
				}
				saved = &res.Clip
				continue
			}
		case <-enter:
		case <-ctx.Done():
		}

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		saved, err = svc.StopRecording(stopCtx)
		cancel()
		if errors.Is(err, whisperjar.ErrNotRecording) {
			// AutoStop got there first.
			if autoSeen {
				return fmt.Errorf("recording ended unexpectedly: %w", err)
			}
			out := <-auto
			if out.results == nil {
				return fmt.Errorf("recording ended unexpectedly: %w", err)
			}
			res := <-out.results
			saved, err = &res.Clip, res.Err
		}
		if err != nil {
			return fmt.Errorf("failed to save recording: %w", err)
		}
	}

	fmt.Printf("\n✅ Saved clip %d: %s\n", saved.ID, saved)
	fmt.Printf("   File:    %s\n", saved.FileName)
	fmt.Printf("   Length:  %s\n", saved.Duration())
	return nil
}

func printMeter(rec *whisperjar.Recorder) {
	const width = 20
	bars := int(rec.Level() * width)
	if bars > width {
		bars = width
	}
	fmt.Printf("\r   %5.1fs [%-20s] %3.0f%%",
		rec.Elapsed().Seconds(), strings.Repeat("#", bars), rec.Progress()*100)
}

func handleList(args []string) error {
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	all := listCmd.Bool("all", false, "Include clips whose recording never finished")
	since := listCmd.Duration("since", 0, "Only clips recorded within this long, e.g. 24h")
	listCmd.Parse(args)

	svc, closeSvc, err := createService()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer closeSvc()

	var clips []models.Clip
	switch {
	case *all:
		clips, err = svc.ListAllClips()
	case *since > 0:
		clips, err = svc.ListClipsSince(time.Now().Add(-*since))
	default:
		clips, err = svc.ListClips()
	}
	if err != nil {
		return fmt.Errorf("failed to list clips: %w", err)
	}

	if len(clips) == 0 {
		fmt.Println("📭 No clips yet. Try: whisperjar record")
		return nil
	}

	recorded, total, err := svc.CountClips()
	if err != nil {
		return fmt.Errorf("failed to count clips: %w", err)
	}
	fmt.Printf("📚 %d clip(s) shown, %d recorded, %d unfinished\n\n", len(clips), recorded, total-recorded)
	fmt.Printf("%-5s %-32s %8s %10s  %s\n", "ID", "NAME", "LENGTH", "SIZE", "CREATED")
	fmt.Println(strings.Repeat("-", 80))
	for _, c := range clips {
		size := "-"
		if n, err := utils.FileSize(c.FileName); err == nil {
			size = humanize.Bytes(uint64(n))
		}
		length := "-"
		if c.Playable() {
			length = c.Duration().Round(100 * time.Millisecond).String()
		}
		fmt.Printf("%-5d %-32s %8s %10s  %s\n", c.ID, c.Name, length, size, humanize.Time(c.CreatedAt))
	}
	return nil
}

func handlePlay(args []string) error {
	id := parseID(args, "play <id>")

	svc, closeSvc, err := createService()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer closeSvc()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pb, err := svc.Play(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to play clip: %w", err)
	}
	fmt.Printf("🔊 Playing clip %d (%s)\n", id, pb.Duration().Round(100*time.Millisecond))

	select {
	case err := <-pb.Done():
		if err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}
		fmt.Println("✅ Done")
	case <-ctx.Done():
		svc.StopPlayback()
		fmt.Println("\n⏹️  Stopped")
	}
	return nil
}

func handleRename(args []string) error {
	id := parseID(args, "rename <id> <name>")
	if len(args) < 2 {
		fmt.Println("Usage: whisperjar rename <id> <name>")
		os.Exit(1)
	}
	name := strings.Join(args[1:], " ")

	svc, closeSvc, err := createService()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer closeSvc()

	clip, err := svc.RenameClip(id, name)
	if err != nil {
		if errors.Is(err, whisperjar.ErrNameTooLong) {
			return fmt.Errorf("names are limited to %d characters: %w", models.MaxNameLength, err)
		}
		return fmt.Errorf("failed to rename clip: %w", err)
	}
	fmt.Printf("✏️  Renamed: %s\n", clip)
	return nil
}

func handleShow(args []string) error {
	id := parseID(args, "show <id>")

	svc, closeSvc, err := createService()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer closeSvc()

	clip, err := svc.GetClip(id)
	if err != nil {
		return fmt.Errorf("failed to load clip: %w", err)
	}

	fmt.Printf("🎧 Clip %d\n", clip.ID)
	fmt.Printf("   Name:    %s\n", clip.Name)
	fmt.Printf("   Created: %s (%s)\n", clip.CreatedAt.Format(time.RFC1123), humanize.Time(clip.CreatedAt))
	fmt.Printf("   Length:  %s\n", clip.Duration())
	fmt.Printf("   File:    %s\n", clip.FileName)

	if !clip.Playable() {
		fmt.Println("   ⚠️  Recording never finished")
		return nil
	}
	info, err := audio.ProbeWAV(clip.FileName)
	if err != nil {
		fmt.Printf("   ⚠️  %v\n", err)
		return nil
	}
	fmt.Printf("   Format:  %d Hz, %d ch, %d-bit\n", info.SampleRate, info.Channels, info.BitDepth)
	fmt.Printf("   Audio:   %s, %s, %d frames\n", info.Duration.Round(time.Millisecond), humanize.Bytes(uint64(info.Size)), info.Frames)
	return nil
}
