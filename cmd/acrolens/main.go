package main

import (
	"bytes"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/acrolens/acrolens/pkg/ai"
	"github.com/acrolens/acrolens/pkg/config"
	"github.com/acrolens/acrolens/pkg/engine"
	"github.com/acrolens/acrolens/pkg/fetch"
	"github.com/acrolens/acrolens/pkg/glossary"
	"github.com/acrolens/acrolens/pkg/resolve"
	"github.com/acrolens/acrolens/pkg/segment"
	"github.com/acrolens/acrolens/pkg/tooltip"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	urlFlag := flag.String("url", "", "URL to scan")
	configFlag := flag.String("config", "acrolens.yaml", "Path to settings file")
	resolveFlag := flag.Bool("resolve", false, "Resolve every detected term via the AI service")
	extractFlag := flag.Bool("extract", false, "Run the batch extraction path over the page text")
	dbFlag := flag.String("db", "", "Path to SQLite glossary database (overrides config)")
	jsonFlag := flag.Bool("json", false, "Print the scan report as JSON")
	followFlag := flag.Bool("follow", false, "Keep running and react to settings file changes")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbFlag != "" {
		cfg.DBPath = *dbFlag
	}

	if *urlFlag == "" {
		log.Fatal("Please provide a -url")
	}

	fmt.Printf("Fetching %s...\n", *urlFlag)
	rawHTML, err := fetch.New().Get(ctx, *urlFlag)
	if err != nil {
		log.Fatalf("Failed to fetch page: %v", err)
	}

	doc, err := html.Parse(bytes.NewReader(rawHTML))
	if err != nil {
		log.Fatalf("Failed to parse HTML: %v", err)
	}

	// The AI session is created lazily inside the bridge's isolated context;
	// the first resolution pays the initialization cost.
	factory := func(ctx context.Context) (resolve.Expander, error) {
		return ai.NewService("", ai.WithModel(cfg.Model), ai.WithBaseURL(cfg.BaseURL))
	}

	eng := engine.New(doc, factory, tooltip.NewBoxRenderer(os.Stdout))
	eng.Logger = log.New(os.Stderr, "acrolens: ", log.LstdFlags)
	eng.Coordinator.Timeout = cfg.ResolveTimeout()
	eng.Presenter.HideDelay = cfg.HideDelay()
	eng.Start(ctx)
	defer eng.Close()

	if !cfg.Enabled {
		fmt.Println("Marking is disabled in settings; skipping scan.")
		if err := eng.SetEnabled(ctx, false); err != nil {
			log.Fatalf("Failed to apply settings: %v", err)
		}
	}

	marked, err := eng.ScanPage(ctx)
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	report := eng.Report()
	fmt.Printf("Marked %d text nodes, %d distinct terms.\n", marked, report.Len())

	if *jsonFlag {
		raw, err := report.MarshalJSON()
		if err != nil {
			log.Fatalf("Failed to encode report: %v", err)
		}
		fmt.Println(string(raw))
	} else {
		for _, s := range report.Sightings() {
			fmt.Printf("  %-12s %q\n", s.Term, s.Context)
		}
	}

	if *resolveFlag {
		resolveTerms(ctx, eng)
	}

	var records []ai.Record
	if *extractFlag {
		records = extractRecords(ctx, cfg, *urlFlag, rawHTML)
	}

	if cfg.DBPath != "" && (report.Len() > 0 || len(records) > 0) {
		if err := persist(cfg.DBPath, *urlFlag, doc, report, records); err != nil {
			log.Fatalf("Failed to persist glossary: %v", err)
		}
		fmt.Printf("Glossary saved to %s\n", cfg.DBPath)
	}

	if *followFlag {
		follow(ctx, eng, *configFlag)
	}
}

// resolveTerms resolves every distinct term and previews the first one as a
// hover: the shared tooltip renders below the span's (synthetic) bounding
// box.
func resolveTerms(ctx context.Context, eng *engine.Engine) {
	spans := segment.MarkedSpans(eng.Doc)
	hovered := false
	for _, s := range eng.Report().Sightings() {
		expansion := eng.Coordinator.Resolve(ctx, s.Term)
		if expansion == "" {
			fmt.Printf("  %-12s (not a tech term)\n", s.Term)
			continue
		}
		fmt.Printf("  %-12s %s\n", s.Term, expansion)
		if !hovered {
			for _, span := range spans {
				if segment.TermOf(span) == s.Term {
					eng.Hover(ctx, span, tooltip.Rect{X: 0, Y: 0, W: len(s.Term), H: 1})
					eng.Unhover()
					hovered = true
					break
				}
			}
		}
	}
}

// extractRecords runs the batch extraction collaborator over the readable
// article text.
func extractRecords(ctx context.Context, cfg config.Config, pageURL string, rawHTML []byte) []ai.Record {
	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(bytes.NewReader(rawHTML), parsedURL)
	if err != nil {
		log.Fatalf("Failed to extract article text: %v", err)
	}

	svc, err := ai.NewService("", ai.WithModel(cfg.Model), ai.WithBaseURL(cfg.BaseURL))
	if err != nil {
		log.Fatalf("Failed to create AI service: %v", err)
	}
	records, err := svc.Extract(ctx, article.TextContent)
	if err != nil {
		log.Fatalf("Extraction failed: %v", err)
	}
	fmt.Printf("Extracted %d records:\n", len(records))
	for _, r := range records {
		fmt.Printf("  %-12s %s — %s\n", r.Acronym, r.Expansion, r.Description)
	}
	return records
}

// persist writes the scan report and extraction records through the batched
// glossary writer.
func persist(dbPath, pageURL string, doc *html.Node, report *segment.Report, records []ai.Record) error {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := glossary.InitDB(conn); err != nil {
		return err
	}

	pageID, err := glossary.CreateOrGetPage(conn, pageURL, pageTitle(doc))
	if err != nil {
		return err
	}

	w := glossary.NewWriter(conn, 50, 100*time.Millisecond)
	for _, s := range report.Sightings() {
		sighting := s
		err := w.Submit(func(tx *sql.Tx) error {
			id, err := glossary.CreateOrGetAcronym(tx, sighting.Term, "", "")
			if err != nil {
				return err
			}
			return glossary.RecordSighting(tx, id, pageID, sighting.Context, 1)
		})
		if err != nil {
			return err
		}
	}
	for _, r := range records {
		rec := r
		err := w.Submit(func(tx *sql.Tx) error {
			_, err := glossary.CreateOrGetAcronym(tx, rec.Acronym, rec.Expansion, rec.Description)
			return err
		})
		if err != nil {
			return err
		}
	}
	return w.Close()
}

// follow blocks until interrupted, applying settings-changed events from the
// config file to the engine.
func follow(ctx context.Context, eng *engine.Engine, configPath string) {
	w, err := config.Watch(configPath, config.DefaultDebounce, func(cfg config.Config) {
		if err := eng.SetEnabled(ctx, cfg.Enabled); err != nil {
			log.Printf("Failed to apply settings change: %v", err)
			return
		}
		fmt.Printf("Settings changed: enabled=%v (%d distinct terms known)\n", cfg.Enabled, eng.Report().Len())
	}, func(err error) {
		log.Printf("Settings watcher error: %v", err)
	})
	if err != nil {
		log.Fatalf("Failed to watch settings: %v", err)
	}
	defer w.Close()

	fmt.Println("Watching settings; press Ctrl-C to exit.")
	<-ctx.Done()
}

// pageTitle returns the <title> text, if any.
func pageTitle(doc *html.Node) string {
	var title string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = n.FirstChild.Data
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)
	return title
}
