package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/jeongseonghan/iqmodem/internal/config"
	"github.com/jeongseonghan/iqmodem/internal/logging"
	"github.com/jeongseonghan/iqmodem/internal/modem"
	"github.com/jeongseonghan/iqmodem/internal/protocol"
)

var (
	header = color.New(color.Bold, color.FgCyan)
	label  = color.New(color.FgYellow)
	pass   = color.New(color.Bold, color.FgGreen)
	fail   = color.New(color.Bold, color.FgRed)
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	modName := flag.String("mod", "", "Modulation (BPSK, QPSK, 8PSK, 16PSK, 4-QAM, 16-QAM, 64-QAM, 256-QAM)")
	snr := flag.Float64("snr", 0, "Channel Es/N0 in dB (overrides config)")
	noiseless := flag.Bool("noiseless", false, "Bypass the noise channel")
	message := flag.String("message", "Hello, IQ modem!", "Message to send")
	seed := flag.Int64("seed", 0, "Noise seed (overrides config)")
	trials := flag.Int("trials", 1, "Number of trials to run")
	showConst := flag.Bool("const", false, "Print the constellation table and exit")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Only flags set on the command line override the config.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mod":
			cfg.Modem.Modulation = *modName
		case "snr":
			cfg.Channel.SNRDB = *snr
			cfg.Channel.Noiseless = false
		case "noiseless":
			cfg.Channel.Noiseless = *noiseless
		case "seed":
			cfg.Channel.Seed = *seed
		}
	})

	if err := cfg.Validate(); err != nil {
		fatalf("Invalid config: %v", err)
	}
	// The CLI reports through its own table; keep the log to warnings.
	cfg.Logging.Level = "warn"
	if err := logging.InitGlobalLogger(cfg); err != nil {
		fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseGlobalLogger()

	mod, err := cfg.Modulation()
	if err != nil {
		fatalf("%v", err)
	}

	if *showConst {
		c, err := mod.Constellation()
		if err != nil {
			fatalf("%v", err)
		}
		printConstellation(c)
		return
	}

	failed := 0
	for i := 0; i < *trials; i++ {
		session, err := protocol.NewSession(mod, protocol.SessionOptions{
			Workers:   cfg.Modem.Workers,
			Noiseless: cfg.Channel.Noiseless,
			SNRDB:     cfg.Channel.SNRDB,
			Seed:      cfg.Channel.Seed + int64(i),
		})
		if err != nil {
			fatalf("Failed to create session: %v", err)
		}

		result, err := session.RunTrial([]byte(*message))
		if err != nil {
			fatalf("Trial failed: %v", err)
		}
		printResult(i+1, result)
		if !result.FrameOK {
			failed++
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// printConstellation prints one row per point: index, binary label, I, Q.
func printConstellation(c *modem.Constellation) {
	header.Printf("%s  (%d points, %d bits/symbol)\n", c.Name(), c.Size(), c.BitsPerSymbol())
	fmt.Printf("  min distance %.6f, average energy %.6f\n\n", c.MinDistance(), c.AverageEnergy())
	header.Printf("%6s  %-*s  %10s  %10s\n", "index", max(c.BitsPerSymbol(), 5), "label", "I", "Q")

	for i, p := range c.Points() {
		fmt.Printf("%6d  ", i)
		label.Printf("%-*s", max(c.BitsPerSymbol(), 5), fmt.Sprintf("%0*b", c.BitsPerSymbol(), i))
		fmt.Printf("  %10.6f  %10.6f\n", real(p), imag(p))
	}
}

func printResult(n int, r *protocol.TrialResult) {
	status := pass.Sprint("OK")
	if !r.FrameOK {
		status = fail.Sprint("FAIL")
	}

	channel := "noiseless"
	if !r.Noiseless {
		channel = fmt.Sprintf("Es/N0 %.1f dB", r.SNRDB)
		if r.MeasuredSNR != nil {
			channel += fmt.Sprintf(" (measured %.1f dB)", *r.MeasuredSNR)
		}
	}

	fmt.Printf("#%-3d %-8s %-30s symbols %-5d SER %.4g  BER %.4g  %s",
		n, r.Modulation, channel, r.Symbols, r.SER, r.BER, status)
	if r.Error != "" {
		fmt.Printf("  %s", r.Error)
	}
	fmt.Println()
}

func fatalf(format string, args ...interface{}) {
	fail.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
