package commands

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"juris-robot/lib/browser"
	"juris-robot/lib/configutil"
	"juris-robot/lib/mailcode"
	"juris-robot/lib/pdftext"
	"juris-robot/lib/util/serviceutil"
	"juris-robot/services/esaj"
	"juris-robot/services/ingest"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type PortalConfig struct {
	Url      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type MailConfig struct {
	Address  string `json:"address"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type SinkConfig struct {
	Url string `json:"url"`
}

type BrowserConfig struct {
	Headful     bool   `json:"headful"`
	DownloadDir string `json:"download_dir"`
}

type OcrConfig struct {
	Lang string `json:"lang"`
	Dpi  int    `json:"dpi"`
}

type Config struct {
	Portal   PortalConfig  `json:"portal"`
	Mail     MailConfig    `json:"mail"`
	Sink     SinkConfig    `json:"sink"`
	Browser  BrowserConfig `json:"browser"`
	Ocr      OcrConfig     `json:"ocr"`
	KeysFile string        `json:"keys_file"`
	Target   int           `json:"target"`
}

var runConfig *string

func init() {
	runConfig = runCmd.Flags().String("config", "config.json5", "The configuration file to run with.")
	rootCmd.AddCommand(runCmd)
}

// readKeys loads one search key per line, skipping blanks and # comments.
func readKeys(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var keys []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, line)
	}
	return keys, scanner.Err()
}

var runCmd = &cobra.Command{
	Use:   "run [--config <path/to/config.json5>] [keys...]",
	Short: "Runs one full acquisition session against the portal.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := configutil.ReadConfig[Config](*runConfig)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		if cfg.Portal.Username == "" || cfg.Portal.Password == "" {
			serviceutil.Fatal("portal credentials missing from config", os.ErrInvalid)
		}
		if cfg.Sink.Url == "" {
			serviceutil.Fatal("sink url missing from config", os.ErrInvalid)
		}

		keys := args
		if len(keys) == 0 {
			keys, err = readKeys(cfg.KeysFile)
			if err != nil {
				serviceutil.Fatal("failed to read search keys", err)
			}
		}
		if len(keys) == 0 {
			serviceutil.Fatal("no search keys to run with", os.ErrInvalid)
		}

		downloadDir := cfg.Browser.DownloadDir
		if downloadDir == "" {
			downloadDir, err = os.MkdirTemp("", "juris-downloads-")
			if err != nil {
				serviceutil.Fatal("failed to create download dir", err)
			}
			defer os.RemoveAll(downloadDir)
		}

		session, err := browser.NewSession(ctx, browser.Options{
			Headless:    !cfg.Browser.Headful,
			DownloadDir: downloadDir,
		})
		if err != nil {
			serviceutil.Fatal("failed to start browser", err)
		}
		defer session.Close()

		dialer := mailcode.NewImapDialer(mailcode.ImapConfig{
			Address:  cfg.Mail.Address,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
		})

		sink := ingest.NewClient(cfg.Sink.Url)
		if *verbose {
			sink.DumpTranscripts(".dev/resty/ingest")
		}

		scraper := esaj.NewScraper(
			esaj.NewPage(session),
			pdftext.NewExtractor(pdftext.Config{
				Lang: cfg.Ocr.Lang,
				DPI:  cfg.Ocr.Dpi,
			}),
			sink,
			esaj.Options{
				PortalURL: cfg.Portal.Url,
				Username:  cfg.Portal.Username,
				Password:  cfg.Portal.Password,
				Target:    cfg.Target,
				FetchCode: func(ctx context.Context) (string, error) {
					return mailcode.Fetch(ctx, dialer, mailcode.Options{})
				},
			},
		)

		t1 := time.Now()
		err = scraper.Run(ctx, keys)
		renderReport(scraper)
		if err != nil {
			serviceutil.Fatal("session aborted", err)
		}
		slog.Info("session time", "seconds", time.Since(t1).Seconds())
	},
}

func renderReport(scraper *esaj.Scraper) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)

	t.AppendHeader(table.Row{"Key", "Eligible", "Ingested", "Aborted"})
	for _, stats := range scraper.Stats() {
		t.AppendRow(table.Row{stats.Key, stats.Eligible, stats.Ingested, stats.Aborted})
	}
	state := scraper.State()
	t.AppendFooter(table.Row{"Processed", "", state.Processed, fmt.Sprintf("target %d", state.Target)})

	t.SetStyle(table.StyleRounded)
	t.Render()
}
